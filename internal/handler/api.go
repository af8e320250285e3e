package handler

import (
	"time"

	"github.com/goalpath/internal/notify"
	"github.com/goalpath/internal/service"
	"gorm.io/gorm"
)

// Options 汇总 handler 依赖的运行参数
type Options struct {
	JWTSecret           string
	TokenTTL            time.Duration
	Location            *time.Location
	RetentionLimit      int
	Dispatcher          notify.Dispatcher
	ReminderConcurrency int
	SecureCookies       bool
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	auth          *service.AuthService
	goals         *service.GoalService
	schedules     *service.ScheduleService
	todos         *service.TodoService
	reminders     *service.ReminderService
	loc           *time.Location
	secureCookies bool
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = notify.LogSender{}
	}

	return &API{
		auth:          service.NewAuthService(db, opts.JWTSecret, opts.TokenTTL),
		goals:         service.NewGoalService(db),
		schedules:     service.NewScheduleService(db, opts.RetentionLimit, loc),
		todos:         service.NewTodoService(db),
		reminders:     service.NewReminderService(db, dispatcher, opts.ReminderConcurrency),
		loc:           loc,
		secureCookies: opts.SecureCookies,
	}
}

// Reminders 返回与 HTTP 触发共用的提醒服务，供定时任务使用
func (a *API) Reminders() *service.ReminderService {
	return a.reminders
}
