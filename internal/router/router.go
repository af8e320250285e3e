package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options 路由层的可选配置
type Options struct {
	SessionSecret string
	CORSOrigin    string
	SecureCookies bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	secret := strings.TrimSpace(opts.SessionSecret)
	if secret == "" {
		secret = "goalpath-dev-secret"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("goalpath_session", store))

	if origin := strings.TrimSpace(opts.CORSOrigin); origin != "" {
		r.Use(corsMiddleware(origin))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)

		me := auth.Group("")
		me.Use(api.RequireUser())
		{
			me.GET("/me", api.Me)
			me.PUT("/profile", api.UpdateProfile)
			me.PUT("/push-endpoint", api.SetPushEndpoint)
			me.DELETE("/push-endpoint", api.ClearPushEndpoint)
			me.DELETE("/account", api.DeleteAccount)
		}
	}

	goals := r.Group("/goals")
	goals.Use(api.RequireUser())
	{
		goals.POST("", api.CreateGoal)
		goals.GET("/user", api.ListGoals)
		goals.POST("/reminders", api.TriggerReminders)
		goals.GET("/:goalId", api.GetGoal)
		goals.PUT("/:goalId", api.UpdateGoal)
		goals.DELETE("/:goalId", api.DeleteGoal)
		goals.GET("/:goalId/milestones", api.ListMilestones)
		goals.POST("/:goalId/milestones", api.AddMilestone)
		goals.PUT("/:goalId/milestones/:milestoneId", api.UpdateMilestone)
		goals.DELETE("/:goalId/milestones/:milestoneId", api.DeleteMilestone)
	}

	schedules := r.Group("/schedules")
	schedules.Use(api.RequireUser())
	{
		schedules.POST("", api.UpsertSchedule)
		schedules.GET("/user", api.ListSchedules)
		schedules.GET("/user/date/:date", api.GetScheduleByDate)
		schedules.POST("/:scheduleId", api.AddTask)
		schedules.PUT("/:scheduleId", api.PatchSchedule)
		schedules.DELETE("/:scheduleId", api.DeleteSchedule)
		schedules.PUT("/:scheduleId/:taskId", api.UpdateTask)
		schedules.DELETE("/:scheduleId/tasks/:taskId", api.DeleteTask)
	}

	todos := r.Group("/todos")
	todos.Use(api.RequireUser())
	{
		todos.POST("", api.CreateTodo)
		todos.GET("/user", api.ListTodos)
		todos.GET("/:todoId", api.GetTodo)
		todos.PUT("/:todoId", api.UpdateTodo)
		todos.DELETE("/:todoId", api.DeleteTodo)
		todos.POST("/:todoId/items", api.AddTodoItem)
		todos.PUT("/:todoId/items/:itemId", api.UpdateTodoItem)
		todos.DELETE("/:todoId/items/:itemId", api.DeleteTodoItem)
	}

	return r
}

// corsMiddleware 只放行配置的单一来源，并允许携带 Cookie
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", origin)
		header.Set("Access-Control-Allow-Credentials", "true")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		header.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
