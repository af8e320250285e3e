package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/locale"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials 登录失败或令牌无效，handler 映射为 401
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrEmailTaken 同时是一个校验错误
	ErrEmailTaken = fmt.Errorf("%w: email is already in use", ErrValidation)
)

const defaultTokenTTL = 24 * time.Hour

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// AuthService 负责账号、密码校验和访问令牌
type AuthService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// RegisterInput 注册字段
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Language string
}

// ProfileUpdate 可修改的个人资料
// 修改邮箱或密码时必须提供 CurrentPassword
type ProfileUpdate struct {
	Name            *string
	Language        *string
	Email           *string
	CurrentPassword string
	NewPassword     *string
	ConfirmPassword *string
}

type tokenClaims struct {
	jwt.RegisteredClaims
}

// NewAuthService 构造 AuthService
func NewAuthService(gdb *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{db: gdb, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TokenTTL 返回令牌有效期
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}

// Register 创建账号，密码以 bcrypt 存储
func (s *AuthService) Register(input RegisterInput) (*db.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	password := input.Password

	if email == "" || password == "" || name == "" {
		return nil, validationError("all fields are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, validationError("invalid email format")
	}
	if len(password) < 6 {
		return nil, validationError("password must be at least 6 characters long")
	}
	if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
		return nil, validationError("name must be between 3 and 30 characters long")
	}

	var count int64
	if err := s.db.Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Language: locale.PreferenceForLanguage(input.Language).Language,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login 校验邮箱和密码
func (s *AuthService) Login(email, password string) (*db.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, validationError("all fields are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, validationError("invalid email format")
	}

	var user db.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// IssueToken 为用户签发 HS256 令牌，sub 为用户 ID
func (s *AuthService) IssueToken(userID uint) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken 校验令牌并返回用户 ID
func (s *AuthService) ParseToken(token string) (uint, error) {
	if len(s.secret) == 0 {
		return 0, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidCredentials
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidCredentials
	}
	return uint(id), nil
}

// GetUser 按 ID 获取用户
func (s *AuthService) GetUser(userID uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile 更新昵称、语言、邮箱与密码
func (s *AuthService) UpdateProfile(userID uint, update ProfileUpdate) (*db.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	wantsEmail := update.Email != nil && strings.TrimSpace(*update.Email) != ""
	wantsPassword := update.NewPassword != nil || update.ConfirmPassword != nil
	if wantsEmail || wantsPassword {
		if update.CurrentPassword == "" {
			return nil, validationError("current password is required to update email or password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(update.CurrentPassword)); err != nil {
			return nil, validationError("current password is incorrect")
		}
	}

	if wantsEmail {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if !emailPattern.MatchString(email) {
			return nil, validationError("invalid email format")
		}
		if email != user.Email {
			var count int64
			if err := s.db.Model(&db.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if count > 0 {
				return nil, ErrEmailTaken
			}
			user.Email = email
		}
	}

	if wantsPassword {
		if update.NewPassword == nil || update.ConfirmPassword == nil || *update.NewPassword == "" {
			return nil, validationError("new password and confirmation password are required")
		}
		if *update.NewPassword != *update.ConfirmPassword {
			return nil, validationError("new password and confirmation password do not match")
		}
		if len(*update.NewPassword) < 6 {
			return nil, validationError("password must be at least 6 characters long")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*update.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if n := utf8.RuneCountInString(name); n < 3 || n > 30 {
			return nil, validationError("name must be between 3 and 30 characters long")
		}
		user.Name = name
	}
	if update.Language != nil {
		user.Language = locale.PreferenceForLanguage(*update.Language).Language
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// SetPushEndpoint 注册或清除推送目标；endpoint 为 nil 表示清除
func (s *AuthService) SetPushEndpoint(userID uint, endpoint *db.PushEndpoint) (*db.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if endpoint != nil {
		kind := endpoint.EffectiveKind()
		if kind != db.PushKindWebPush && kind != db.PushKindSlack {
			return nil, validationError("unsupported push endpoint kind %q", endpoint.Kind)
		}
		endpoint.Kind = kind
		if !endpoint.Registered() {
			if kind == db.PushKindSlack {
				return nil, validationError("webhookUrl is required")
			}
			return nil, validationError("endpoint is required")
		}
	}

	user.PushEndpoint = endpoint
	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("set push endpoint: %w", err)
	}
	return user, nil
}

// DeleteAccount 删除账号及其名下的目标、日程和待办清单
func (s *AuthService) DeleteAccount(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Delete(&db.User{}, userID)
		if result.Error != nil {
			return fmt.Errorf("delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}

		for _, model := range []any{&db.Goal{}, &db.DailySchedule{}, &db.TodoList{}} {
			if err := tx.Where("user_id = ?", userID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete owned records: %w", err)
			}
		}
		return nil
	})
}
