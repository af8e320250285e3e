package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// PushKindWebPush 标准 Web Push 订阅（浏览器 / PWA）
	PushKindWebPush = "webpush"
	// PushKindSlack 通过 Slack incoming webhook 投递
	PushKindSlack = "slack"
)

// User 定义了用户模型
// PushEndpoint 为空表示用户尚未注册推送，提醒任务会直接跳过该用户
type User struct {
	gorm.Model
	Name         string        `gorm:"not null"`
	Email        string        `gorm:"uniqueIndex;not null"`
	Password     string        `gorm:"not null"`
	Language     string        `gorm:"size:8"`
	PushEndpoint *PushEndpoint `gorm:"serializer:json"`
}

// PushEndpoint 描述一个推送目标。
// Kind=webpush 时使用 Endpoint + Keys；Kind=slack 时使用 WebhookURL。
type PushEndpoint struct {
	Kind       string   `json:"kind,omitempty"`
	Endpoint   string   `json:"endpoint,omitempty"`
	Keys       PushKeys `json:"keys,omitempty"`
	WebhookURL string   `json:"webhookUrl,omitempty"`
}

// PushKeys 对应 Web Push 订阅中的 keys 字段
type PushKeys struct {
	P256dh string `json:"p256dh,omitempty"`
	Auth   string `json:"auth,omitempty"`
}

// Registered 判断推送目标是否可用
func (p *PushEndpoint) Registered() bool {
	if p == nil {
		return false
	}
	switch p.EffectiveKind() {
	case PushKindSlack:
		return strings.TrimSpace(p.WebhookURL) != ""
	default:
		return strings.TrimSpace(p.Endpoint) != ""
	}
}

// EffectiveKind 返回推送类型，空值视为 webpush
func (p *PushEndpoint) EffectiveKind() string {
	kind := strings.ToLower(strings.TrimSpace(p.Kind))
	if kind == "" {
		return PushKindWebPush
	}
	return kind
}

// EnsureUser 存在性检查：若邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
// 返回值 created 表示本次是否新建了账号。
func EnsureUser(email, name, password string) (created bool, err error) {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return false, nil
	}

	if DB == nil {
		return false, errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}

		displayName := strings.TrimSpace(name)
		if displayName == "" {
			displayName = strings.SplitN(trimmedEmail, "@", 2)[0]
		}

		if err := DB.Create(&User{Name: displayName, Email: trimmedEmail, Password: string(hashed)}).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
