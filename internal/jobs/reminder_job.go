// Package jobs 负责周期性触发提醒批处理
package jobs

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goalpath/internal/service"
	"github.com/robfig/cron/v3"
)

// DefaultReminderSpec 每天 09:00 触发一次
const DefaultReminderSpec = "0 9 * * *"

// cronParser 使用标准 5 段表达式（分 时 日 月 周）
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ReminderRunner 是一次提醒批处理
type ReminderRunner interface {
	Run(ctx context.Context) (service.ReminderSummary, error)
}

// ReminderJob 按 cron 表达式调度 ReminderRunner，上一轮未结束时跳过本轮
type ReminderJob struct {
	cron    *cron.Cron
	entry   cron.EntryID
	runner  ReminderRunner
	timeout time.Duration
}

// ValidateSpec 校验 cron 表达式
func ValidateSpec(spec string) error {
	if _, err := cronParser.Parse(strings.TrimSpace(spec)); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// NewReminderJob 构造任务但不启动；spec 为空时使用 DefaultReminderSpec
func NewReminderJob(spec string, loc *time.Location, runner ReminderRunner) (*ReminderJob, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultReminderSpec
	}
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	logger := cron.PrintfLogger(log.New(log.Writer(), "[cron] ", log.LstdFlags))
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	job := &ReminderJob{cron: c, runner: runner, timeout: 10 * time.Minute}
	entry, err := c.AddFunc(spec, job.runOnce)
	if err != nil {
		return nil, fmt.Errorf("schedule reminder job: %w", err)
	}
	job.entry = entry
	log.Printf("[cron] reminder job scheduled with %q (%s)", spec, loc)
	return job, nil
}

func (j *ReminderJob) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.runner.Run(ctx); err != nil {
		log.Printf("[cron] reminder run failed: %v", err)
	}
}

// Start 在后台启动调度
func (j *ReminderJob) Start() {
	j.cron.Start()
}

// Stop 停止调度并等待正在执行的批处理结束，ctx 到期时提前返回
func (j *ReminderJob) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next 返回下一次触发时间；调度未启动时为零值
func (j *ReminderJob) Next() time.Time {
	return j.cron.Entry(j.entry).Next
}
