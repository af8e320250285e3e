package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/service"
)

// notFoundErrors 统一映射为 404
var notFoundErrors = []error{
	service.ErrGoalNotFound,
	service.ErrMilestoneNotFound,
	service.ErrScheduleNotFound,
	service.ErrTaskNotFound,
	service.ErrTodoNotFound,
	service.ErrTodoItemNotFound,
	service.ErrUserNotFound,
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// respondServiceError 将服务层错误翻译为 HTTP 状态码；未知错误返回 500 并带上底层原因
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
	}

	log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": fallback, "error": err.Error()})
}

func respondData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"message": message, "data": data})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// paramID 解析路径中的数字 ID，失败时直接按 404 响应
func paramID(c *gin.Context, key, notFoundMessage string) (uint, bool) {
	id, err := parseUintParam(c, key)
	if err != nil || id == 0 {
		respondError(c, http.StatusNotFound, notFoundMessage)
		return 0, false
	}
	return id, true
}
