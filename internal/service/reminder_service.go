package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/locale"
	"github.com/goalpath/internal/notify"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	ReminderHalfway = "halfway"
	ReminderOverdue = "overdue"

	millisPerDay = 24 * 60 * 60 * 1000

	defaultReminderConcurrency = 8
)

// GoalReminder 是单个目标在某一时刻触发的提醒
type GoalReminder struct {
	GoalID              uint
	UserID              uint
	Title               string
	Kind                string
	RemainingDays       int
	RemainingMilestones int
}

// ReminderSummary 汇总一次批处理的结果
type ReminderSummary struct {
	GoalsScanned     int `json:"goalsScanned"`
	Reminders        int `json:"reminders"`
	UsersNotified    int `json:"usersNotified"`
	UsersSkipped     int `json:"usersSkipped"`
	DispatchFailures int `json:"dispatchFailures"`
}

// ReminderService 扫描未完成目标并按用户汇总推送
// 服务本身无状态：每次调用都会重新评估，已过半程的目标会重复提醒
type ReminderService struct {
	db          *gorm.DB
	dispatcher  notify.Dispatcher
	concurrency int
	now         func() time.Time
}

// NewReminderService 构造 ReminderService，concurrency<=0 时使用默认并发
func NewReminderService(gdb *gorm.DB, dispatcher notify.Dispatcher, concurrency int) *ReminderService {
	if concurrency <= 0 {
		concurrency = defaultReminderConcurrency
	}
	return &ReminderService{db: gdb, dispatcher: dispatcher, concurrency: concurrency, now: time.Now}
}

// EvaluateGoalReminder 判断目标在 now 时刻是否需要提醒。
// 过半程前不提醒；截止日已过为 overdue，否则为 halfway。
func EvaluateGoalReminder(goal db.Goal, now time.Time) (GoalReminder, bool) {
	if goal.Status == db.StatusComplete {
		return GoalReminder{}, false
	}

	totalDuration := goal.TargetDate.Sub(goal.CreatedAt)
	halfway := goal.CreatedAt.Add(totalDuration / 2)
	if now.Before(halfway) {
		return GoalReminder{}, false
	}

	remainingMs := goal.TargetDate.Sub(now).Milliseconds()
	remainingDays := int(math.Ceil(float64(remainingMs) / millisPerDay))

	remainingMilestones := 0
	for _, milestone := range goal.Milestones {
		if !milestone.Completed() && !milestone.EveryDayAction {
			remainingMilestones++
		}
	}

	reminder := GoalReminder{
		GoalID:              goal.ID,
		UserID:              goal.UserID,
		Title:               goal.Title,
		Kind:                ReminderHalfway,
		RemainingDays:       remainingDays,
		RemainingMilestones: remainingMilestones,
	}
	if remainingMs < 0 {
		reminder.Kind = ReminderOverdue
		if reminder.RemainingDays < 0 {
			reminder.RemainingDays = -reminder.RemainingDays
		}
	}
	return reminder, true
}

// FormatReminder 以用户语言渲染提醒文本
func FormatReminder(reminder GoalReminder, language string) string {
	if reminder.Kind == ReminderOverdue {
		return locale.Pick(language,
			fmt.Sprintf("⚠️ \"%s\" is %d day(s) overdue. %d milestone(s) remaining.",
				reminder.Title, reminder.RemainingDays, reminder.RemainingMilestones),
			fmt.Sprintf("⚠️ \"%s\" est en retard de %d jour(s). Il reste %d étape(s).",
				reminder.Title, reminder.RemainingDays, reminder.RemainingMilestones),
		)
	}
	return locale.Pick(language,
		fmt.Sprintf("⏳ \"%s\" is past the halfway point to its deadline. %d day(s) and %d milestone(s) remaining.",
			reminder.Title, reminder.RemainingDays, reminder.RemainingMilestones),
		fmt.Sprintf("⏳ \"%s\" est à mi-chemin de sa date limite. Il reste %d jour(s) et %d étape(s).",
			reminder.Title, reminder.RemainingDays, reminder.RemainingMilestones),
	)
}

func reminderTitle(language string) string {
	return locale.Pick(language, "📌 Your goal reminders", "📌 Rappel de vos objectifs")
}

// CollectReminders 评估所有目标并按用户分组，组内保持目标顺序
func CollectReminders(goals []db.Goal, now time.Time) map[uint][]GoalReminder {
	grouped := make(map[uint][]GoalReminder)
	for _, goal := range goals {
		reminder, ok := EvaluateGoalReminder(goal, now)
		if !ok {
			continue
		}
		grouped[goal.UserID] = append(grouped[goal.UserID], reminder)
	}
	return grouped
}

// Run 执行一次提醒批处理。
// 读取目标或用户失败视为整体失败；单个用户的投递失败只记录日志，不影响其他用户。
func (s *ReminderService) Run(ctx context.Context) (ReminderSummary, error) {
	var summary ReminderSummary
	now := s.now()

	var goals []db.Goal
	if err := s.db.WithContext(ctx).
		Where("status <> ?", db.StatusComplete).
		Order("id ASC").
		Find(&goals).Error; err != nil {
		reminderRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("load goals: %w", err)
	}
	summary.GoalsScanned = len(goals)

	grouped := CollectReminders(goals, now)
	if len(grouped) == 0 {
		reminderRuns.WithLabelValues("ok").Inc()
		return summary, nil
	}

	userIDs := make([]uint, 0, len(grouped))
	for userID := range grouped {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var users []db.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		reminderRuns.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("load users: %w", err)
	}
	usersByID := make(map[uint]db.User, len(users))
	for _, user := range users {
		usersByID[user.ID] = user
	}

	var failures atomic.Int64
	var notified atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, userID := range userIDs {
		reminders := grouped[userID]
		user, ok := usersByID[userID]
		if !ok || !user.PushEndpoint.Registered() {
			summary.UsersSkipped++
			continue
		}

		lines := make([]string, 0, len(reminders))
		for _, reminder := range reminders {
			lines = append(lines, FormatReminder(reminder, user.Language))
			reminderMessages.WithLabelValues(reminder.Kind).Inc()
		}
		summary.Reminders += len(reminders)

		endpoint := *user.PushEndpoint
		payload := notify.Payload{
			Title: reminderTitle(user.Language),
			Body:  strings.Join(lines, "\n"),
			Data:  map[string]any{"userId": user.ID},
		}

		group.Go(func() error {
			if err := s.dispatcher.Dispatch(groupCtx, endpoint, payload); err != nil {
				failures.Add(1)
				reminderDispatches.WithLabelValues("failed").Inc()
				log.Printf("[reminder] dispatch to user %d failed: %v", userID, err)
				if errors.Is(err, notify.ErrEndpointGone) {
					s.clearGoneEndpoint(groupCtx, userID, endpoint)
				}
				return nil
			}
			notified.Add(1)
			reminderDispatches.WithLabelValues("sent").Inc()
			return nil
		})
	}

	// 投递错误已在 goroutine 内吞掉，Wait 只用于等待全部完成
	_ = group.Wait()

	summary.UsersNotified = int(notified.Load())
	summary.DispatchFailures = int(failures.Load())
	reminderRuns.WithLabelValues("ok").Inc()

	log.Printf("[reminder] scanned=%d reminders=%d notified=%d skipped=%d failed=%d",
		summary.GoalsScanned, summary.Reminders, summary.UsersNotified, summary.UsersSkipped, summary.DispatchFailures)
	return summary, nil
}

// clearGoneEndpoint 订阅已失效时清除用户的推送目标，后续批处理直接跳过该用户。
// 只在存储的目标仍是本次投递的目标时清除，避免覆盖用户刚注册的新订阅。
func (s *ReminderService) clearGoneEndpoint(ctx context.Context, userID uint, gone db.PushEndpoint) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		log.Printf("[reminder] reload user %d: %v", userID, err)
		return
	}
	if user.PushEndpoint == nil || *user.PushEndpoint != gone {
		return
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("push_endpoint", gorm.Expr("NULL")).Error; err != nil {
		log.Printf("[reminder] clear push endpoint for user %d: %v", userID, err)
		return
	}
	log.Printf("[reminder] push endpoint for user %d is gone; cleared", userID)
}
