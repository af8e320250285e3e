package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr     string
	Port           string
	DatabaseDriver string
	DatabasePath   string
	JWTSecret      string
	SessionSecret  string
	TokenTTL       time.Duration
	GinMode        string
	CORSOrigin     string
	CookieSecure   bool
	Location       *time.Location

	RetentionLimit      int
	ReminderCron        string
	ReminderConcurrency int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
}

// configFileEnv 指定可选配置文件路径，文件中的键名与环境变量一致
const configFileEnv = "GOALPATH_CONFIG"

// Load 从环境变量（及可选配置文件）读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	return load(viper.New())
}

func load(v *viper.Viper) AppConfig {
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_PATH", "goalpath.db")
	v.SetDefault("JWT_SECRET", "goalpath-dev-jwt-secret")
	v.SetDefault("SESSION_SECRET", "goalpath-dev-secret")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("SCHEDULE_RETENTION_LIMIT", 7)
	v.SetDefault("REMINDER_CRON", "0 9 * * *")
	v.SetDefault("REMINDER_CONCURRENCY", 8)
	v.SetDefault("VAPID_SUBSCRIBER", "admin@example.com")

	if path := strings.TrimSpace(v.GetString(configFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] failed to read %s: %v", path, err)
		}
	}

	port := strings.TrimSpace(v.GetString("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(v.GetString("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	tokenTTL, err := time.ParseDuration(strings.TrimSpace(v.GetString("TOKEN_TTL")))
	if err != nil || tokenTTL <= 0 {
		log.Printf("[config] invalid TOKEN_TTL %q, using 24h", v.GetString("TOKEN_TTL"))
		tokenTTL = 24 * time.Hour
	}

	retention := v.GetInt("SCHEDULE_RETENTION_LIMIT")
	if retention <= 0 {
		retention = 7
	}

	concurrency := v.GetInt("REMINDER_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 8
	}

	return AppConfig{
		ListenAddr:          listenAddr,
		Port:                port,
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		DatabasePath:        strings.TrimSpace(v.GetString("DATABASE_PATH")),
		JWTSecret:           strings.TrimSpace(v.GetString("JWT_SECRET")),
		SessionSecret:       strings.TrimSpace(v.GetString("SESSION_SECRET")),
		TokenTTL:            tokenTTL,
		GinMode:             strings.TrimSpace(v.GetString("GIN_MODE")),
		CORSOrigin:          strings.TrimSpace(v.GetString("CORS_ORIGIN")),
		CookieSecure:        v.GetBool("COOKIE_SECURE"),
		Location:            loadLocation(v.GetString("TIMEZONE")),
		RetentionLimit:      retention,
		ReminderCron:        strings.TrimSpace(v.GetString("REMINDER_CRON")),
		ReminderConcurrency: concurrency,
		VAPIDPublicKey:      strings.TrimSpace(v.GetString("VAPID_PUBLIC_KEY")),
		VAPIDPrivateKey:     strings.TrimSpace(v.GetString("VAPID_PRIVATE_KEY")),
		VAPIDSubscriber:     strings.TrimSpace(v.GetString("VAPID_SUBSCRIBER")),
	}
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("[config] unknown TIMEZONE %q, using local time", name)
		return time.Local
	}
	return loc
}
