package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/config"
	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/handler"
	"github.com/goalpath/internal/jobs"
	"github.com/goalpath/internal/notify"
	"github.com/goalpath/internal/router"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run the goal reminder batch once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			api, err := setupAPI(cfg)
			if err != nil {
				return err
			}

			summary, err := api.Reminders().Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run reminders: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d goals, %d reminders, notified %d users, skipped %d, %d failures\n",
				summary.GoalsScanned, summary.Reminders, summary.UsersNotified, summary.UsersSkipped, summary.DispatchFailures)
			return nil
		},
	}
}

// newDispatcher 按配置组装推送路由；缺少 VAPID 密钥时 Web Push 退化为日志输出
func newDispatcher(cfg config.AppConfig) notify.Dispatcher {
	dispatcher := notify.NewRouter()

	webPush, err := notify.NewWebPushSender(notify.WebPushConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subscriber: cfg.VAPIDSubscriber,
	})
	if err != nil {
		log.Printf("[notify] web push disabled: %v", err)
		dispatcher.Register(db.PushKindWebPush, notify.LogSender{})
	} else {
		dispatcher.Register(db.PushKindWebPush, webPush)
	}

	dispatcher.Register(db.PushKindSlack, notify.NewSlackSender(&http.Client{Timeout: 10 * time.Second}))
	return dispatcher
}

func setupAPI(cfg config.AppConfig) (*handler.API, error) {
	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return handler.NewAPI(db.DB, handler.Options{
		JWTSecret:           cfg.JWTSecret,
		TokenTTL:            cfg.TokenTTL,
		Location:            cfg.Location,
		RetentionLimit:      cfg.RetentionLimit,
		Dispatcher:          newDispatcher(cfg),
		ReminderConcurrency: cfg.ReminderConcurrency,
		SecureCookies:       cfg.CookieSecure,
	}), nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	api, err := setupAPI(cfg)
	if err != nil {
		return err
	}

	job, err := jobs.NewReminderJob(cfg.ReminderCron, cfg.Location, api.Reminders())
	if err != nil {
		return err
	}
	job.Start()
	log.Printf("[cron] next reminder run at %s", job.Next().Format(time.RFC3339))

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		CORSOrigin:    cfg.CORSOrigin,
		SecureCookies: cfg.CookieSecure,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = job.Stop(context.Background())
			return fmt.Errorf("run server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Printf("[http] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[http] shutdown: %v", err)
	}
	return job.Stop(shutdownCtx)
}
