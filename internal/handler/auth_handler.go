package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/locale"
	"github.com/goalpath/internal/service"
)

const (
	sessionUserKey   = "user_id"
	tokenCookieName  = "token"
	currentUserIDKey = "currentUserID"
)

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Language string `json:"language"`
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profilePayload struct {
	Name            *string `json:"name"`
	Language        *string `json:"language"`
	Email           *string `json:"email"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
	ConfirmPassword *string `json:"confirmPassword"`
}

type userView struct {
	ID        uint              `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Language  string            `json:"language"`
	Push      *pushEndpointView `json:"pushEndpoint,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type pushEndpointView struct {
	Kind       string `json:"kind"`
	Endpoint   string `json:"endpoint,omitempty"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

func newUserView(user *db.User) userView {
	view := userView{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Language:  locale.PreferenceForLanguage(user.Language).Language,
		CreatedAt: user.CreatedAt,
	}
	if user.PushEndpoint.Registered() {
		view.Push = &pushEndpointView{
			Kind:       user.PushEndpoint.EffectiveKind(),
			Endpoint:   user.PushEndpoint.Endpoint,
			WebhookURL: user.PushEndpoint.WebhookURL,
		}
	}
	return view
}

// RequireUser 解析调用方身份：依次尝试 Bearer 令牌、token Cookie 与会话
func (a *API) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := requestToken(c); ok {
			userID, err := a.auth.ParseToken(token)
			if err != nil {
				respondError(c, http.StatusUnauthorized, "not authorized, token failed")
				c.Abort()
				return
			}
			c.Set(currentUserIDKey, userID)
			c.Next()
			return
		}

		session := sessions.Default(c)
		if userID, ok := session.Get(sessionUserKey).(uint); ok && userID > 0 {
			c.Set(currentUserIDKey, userID)
			c.Next()
			return
		}

		respondError(c, http.StatusUnauthorized, "not authorized, no token")
		c.Abort()
	}
}

func requestToken(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], true
		}
	}
	if cookie, err := c.Cookie(tokenCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return cookie, true
	}
	return "", false
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(currentUserIDKey)
}

// startSession 签发令牌，同时写入 Cookie 与服务端会话
func (a *API) startSession(c *gin.Context, user *db.User) (string, error) {
	token, err := a.auth.IssueToken(user.ID)
	if err != nil {
		return "", err
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		return "", err
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookieName, token, int(a.auth.TokenTTL().Seconds()), "/", "", a.secureCookies, true)
	return token, nil
}

// Register 注册账号并直接登录
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload, "invalid registration payload") {
		return
	}
	if payload.Language == "" {
		payload.Language = locale.LanguageFromAcceptLanguage(c.GetHeader("Accept-Language"))
	}

	user, err := a.auth.Register(service.RegisterInput{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Language: payload.Language,
	})
	if err != nil {
		respondServiceError(c, err, "an error occurred while registering the user")
		return
	}

	token, err := a.startSession(c, user)
	if err != nil {
		respondServiceError(c, err, "an error occurred while registering the user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "user registered successfully",
		"token":   token,
		"user":    newUserView(user),
	})
}

// Login 校验邮箱密码并签发令牌
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "invalid login payload") {
		return
	}

	user, err := a.auth.Login(payload.Email, payload.Password)
	if err != nil {
		respondServiceError(c, err, "an error occurred while logging in the user")
		return
	}

	token, err := a.startSession(c, user)
	if err != nil {
		respondServiceError(c, err, "an error occurred while logging in the user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "user logged in successfully",
		"token":   token,
		"user":    newUserView(user),
	})
}

func (a *API) endSession(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.SetCookie(tokenCookieName, "", -1, "/", "", a.secureCookies, true)
}

// Logout 清除会话与 Cookie
func (a *API) Logout(c *gin.Context) {
	a.endSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "user logged out successfully"})
}

// Me 返回当前用户信息
func (a *API) Me(c *gin.Context) {
	user, err := a.auth.GetUser(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "an error occurred while fetching user information")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user information retrieved successfully", "user": newUserView(user)})
}

// UpdateProfile 修改昵称、语言、邮箱或密码
func (a *API) UpdateProfile(c *gin.Context) {
	var payload profilePayload
	if !bindJSON(c, &payload, "invalid profile payload") {
		return
	}

	user, err := a.auth.UpdateProfile(currentUserID(c), service.ProfileUpdate{
		Name:            payload.Name,
		Language:        payload.Language,
		Email:           payload.Email,
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		respondServiceError(c, err, "error updating profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated successfully", "user": newUserView(user)})
}

// SetPushEndpoint 注册提醒推送目标（Web Push 订阅或 Slack webhook）
func (a *API) SetPushEndpoint(c *gin.Context) {
	var endpoint db.PushEndpoint
	if !bindJSON(c, &endpoint, "invalid push endpoint payload") {
		return
	}

	user, err := a.auth.SetPushEndpoint(currentUserID(c), &endpoint)
	if err != nil {
		respondServiceError(c, err, "error saving push endpoint")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push endpoint saved", "user": newUserView(user)})
}

// ClearPushEndpoint 取消推送
func (a *API) ClearPushEndpoint(c *gin.Context) {
	user, err := a.auth.SetPushEndpoint(currentUserID(c), nil)
	if err != nil {
		respondServiceError(c, err, "error removing push endpoint")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "push endpoint removed", "user": newUserView(user)})
}

// DeleteAccount 删除当前账号并清除登录状态
func (a *API) DeleteAccount(c *gin.Context) {
	if err := a.auth.DeleteAccount(currentUserID(c)); err != nil {
		respondServiceError(c, err, "error deleting account")
		return
	}
	a.endSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "account deleted and cookie cleared"})
}
