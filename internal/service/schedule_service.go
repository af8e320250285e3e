package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/goalpath/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRetentionLimit 每个用户最多保留的日程数
const DefaultRetentionLimit = 7

var (
	// ErrScheduleNotFound 在日程不存在或不属于当前用户时返回
	ErrScheduleNotFound = errors.New("daily schedule not found")
	// ErrTaskNotFound 在任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
)

// ScheduleService 负责每日日程、任务以及保留策略
type ScheduleService struct {
	db             *gorm.DB
	retentionLimit int
	loc            *time.Location
	now            func() time.Time
}

// TaskInput 定义新增或整体替换任务时的字段
type TaskInput struct {
	ID            string
	Title         string
	Description   string
	Priority      string
	Status        string
	EstimatedTime *float64
	StartTime     string
	EndTime       string
}

// TaskUpdate 定义单个任务的更新，nil 表示保持原值
type TaskUpdate struct {
	Title         *string
	Description   *string
	Priority      *string
	Status        *string
	EstimatedTime *float64
	StartTime     *string
	EndTime       *string
}

// SchedulePatch 是日程可修改字段的白名单
type SchedulePatch struct {
	Date  *string
	Tasks *[]TaskInput
}

// NewScheduleService 构造 ScheduleService；limit<=0 时使用默认值，loc 为空时使用本地时区
func NewScheduleService(gdb *gorm.DB, retentionLimit int, loc *time.Location) *ScheduleService {
	if retentionLimit <= 0 {
		retentionLimit = DefaultRetentionLimit
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleService{db: gdb, retentionLimit: retentionLimit, loc: loc, now: time.Now}
}

// Upsert 按 (userID, date) 创建或更新日程。
// 已存在时整体替换任务列表并跳过保留策略；不存在时先执行保留策略再创建。
// created 表示本次是否新建。
func (s *ScheduleService) Upsert(userID uint, date string, inputs []TaskInput) (*db.DailySchedule, bool, error) {
	dayKey, err := NormalizeDayKey(date, s.loc)
	if err != nil {
		return nil, false, err
	}
	tasks, err := buildTasks(inputs)
	if err != nil {
		return nil, false, err
	}

	var schedule db.DailySchedule
	created := false

	err = s.db.Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("user_id = ? AND date = ?", userID, dayKey).First(&schedule).Error
		switch {
		case findErr == nil:
			schedule.Tasks = tasks
			if err := tx.Save(&schedule).Error; err != nil {
				return fmt.Errorf("update schedule: %w", err)
			}
			return nil
		case !errors.Is(findErr, gorm.ErrRecordNotFound):
			return fmt.Errorf("find schedule: %w", findErr)
		}

		if err := s.enforceRetention(tx, userID); err != nil {
			return err
		}

		schedule = db.DailySchedule{UserID: userID, Date: dayKey, Tasks: tasks}
		if err := tx.Create(&schedule).Error; err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &schedule, created, nil
}

// enforceRetention 在新建日程前执行：数量达到上限时删除最早的一条过去日程。
// 最早的一条是今天或未来时不删除，此时上限会被暂时突破。删除失败会中止本次创建。
func (s *ScheduleService) enforceRetention(tx *gorm.DB, userID uint) error {
	var existing []db.DailySchedule
	if err := tx.Select("id", "date").
		Where("user_id = ?", userID).
		Order("date ASC").Order("id ASC").
		Find(&existing).Error; err != nil {
		return fmt.Errorf("load schedules for retention: %w", err)
	}
	if len(existing) < s.retentionLimit {
		return nil
	}

	oldest := existing[0]
	today := s.now().In(s.loc).Format(db.DayKeyFormat)
	if oldest.Date >= today {
		log.Printf("[retention] user %d has %d schedules, oldest %s is not in the past; keeping all", userID, len(existing), oldest.Date)
		return nil
	}

	if err := tx.Delete(&db.DailySchedule{}, oldest.ID).Error; err != nil {
		return fmt.Errorf("evict schedule %d: %w", oldest.ID, err)
	}
	scheduleEvictions.Inc()
	log.Printf("[retention] evicted schedule %d (%s) for user %d", oldest.ID, oldest.Date, userID)
	return nil
}

// List 返回用户全部日程，按日期升序
func (s *ScheduleService) List(userID uint) ([]db.DailySchedule, error) {
	var schedules []db.DailySchedule
	if err := s.db.Where("user_id = ?", userID).Order("date ASC").Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// GetByDate 返回用户某一天的日程
func (s *ScheduleService) GetByDate(userID uint, date string) (*db.DailySchedule, error) {
	dayKey, err := NormalizeDayKey(date, s.loc)
	if err != nil {
		return nil, err
	}
	var schedule db.DailySchedule
	if err := s.db.Where("user_id = ? AND date = ?", userID, dayKey).First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule by date: %w", err)
	}
	return &schedule, nil
}

// Get 根据 ID 获取日程
func (s *ScheduleService) Get(userID, scheduleID uint) (*db.DailySchedule, error) {
	var schedule db.DailySchedule
	if err := s.db.Where("id = ? AND user_id = ?", scheduleID, userID).First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &schedule, nil
}

// Patch 仅允许修改 date 与 tasks；新日期已被同用户其他日程占用时拒绝
func (s *ScheduleService) Patch(userID, scheduleID uint, patch SchedulePatch) (*db.DailySchedule, error) {
	schedule, err := s.Get(userID, scheduleID)
	if err != nil {
		return nil, err
	}

	if patch.Date != nil {
		dayKey, err := NormalizeDayKey(*patch.Date, s.loc)
		if err != nil {
			return nil, err
		}
		if dayKey != schedule.Date {
			var count int64
			if err := s.db.Model(&db.DailySchedule{}).
				Where("user_id = ? AND date = ? AND id <> ?", userID, dayKey, schedule.ID).
				Count(&count).Error; err != nil {
				return nil, fmt.Errorf("check schedule date: %w", err)
			}
			if count > 0 {
				return nil, validationError("a schedule already exists for %s", dayKey)
			}
			schedule.Date = dayKey
		}
	}
	if patch.Tasks != nil {
		tasks, err := buildTasks(*patch.Tasks)
		if err != nil {
			return nil, err
		}
		schedule.Tasks = tasks
	}

	if err := s.db.Save(schedule).Error; err != nil {
		return nil, fmt.Errorf("patch schedule: %w", err)
	}
	return schedule, nil
}

// AddTask 在末尾追加任务，任务 ID 总是由服务端生成
func (s *ScheduleService) AddTask(userID, scheduleID uint, input TaskInput) (*db.DailySchedule, db.Task, error) {
	schedule, err := s.Get(userID, scheduleID)
	if err != nil {
		return nil, db.Task{}, err
	}

	input.ID = ""
	task, err := buildTask(input)
	if err != nil {
		return nil, db.Task{}, err
	}
	schedule.Tasks = append(schedule.Tasks, task)

	if err := s.db.Save(schedule).Error; err != nil {
		return nil, db.Task{}, fmt.Errorf("add task: %w", err)
	}
	return schedule, task, nil
}

// UpdateTask 按 ID 更新任务中提供的字段；任务不存在时其他任务保持不变
func (s *ScheduleService) UpdateTask(userID, scheduleID uint, taskID string, update TaskUpdate) (*db.DailySchedule, db.Task, error) {
	schedule, err := s.Get(userID, scheduleID)
	if err != nil {
		return nil, db.Task{}, err
	}

	idx := schedule.TaskIndex(taskID)
	if idx < 0 {
		return nil, db.Task{}, ErrTaskNotFound
	}
	task := schedule.Tasks[idx]

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, db.Task{}, validationError("task title is required")
		}
		task.Title = title
	}
	if update.Description != nil {
		task.Description = strings.TrimSpace(*update.Description)
	}
	if update.Priority != nil {
		priority, err := normalizePriority(*update.Priority)
		if err != nil {
			return nil, db.Task{}, err
		}
		task.Priority = priority
	}
	if update.Status != nil {
		status, err := normalizeTaskStatus(*update.Status)
		if err != nil {
			return nil, db.Task{}, err
		}
		task.Status = status
	}
	if update.EstimatedTime != nil {
		if *update.EstimatedTime < 0 {
			return nil, db.Task{}, validationError("estimatedTime must not be negative")
		}
		task.EstimatedTime = *update.EstimatedTime
	}
	if update.StartTime != nil {
		startTime, err := validateClockTime("startTime", *update.StartTime)
		if err != nil {
			return nil, db.Task{}, err
		}
		task.StartTime = startTime
	}
	if update.EndTime != nil {
		endTime, err := validateClockTime("endTime", *update.EndTime)
		if err != nil {
			return nil, db.Task{}, err
		}
		task.EndTime = endTime
	}

	schedule.Tasks[idx] = task
	if err := s.db.Save(schedule).Error; err != nil {
		return nil, db.Task{}, fmt.Errorf("update task: %w", err)
	}
	return schedule, task, nil
}

// DeleteTask 按 ID 删除任务
func (s *ScheduleService) DeleteTask(userID, scheduleID uint, taskID string) (*db.DailySchedule, error) {
	schedule, err := s.Get(userID, scheduleID)
	if err != nil {
		return nil, err
	}

	idx := schedule.TaskIndex(taskID)
	if idx < 0 {
		return nil, ErrTaskNotFound
	}

	remaining := make([]db.Task, 0, len(schedule.Tasks)-1)
	remaining = append(remaining, schedule.Tasks[:idx]...)
	remaining = append(remaining, schedule.Tasks[idx+1:]...)
	schedule.Tasks = remaining

	if err := s.db.Save(schedule).Error; err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	return schedule, nil
}

// Delete 删除日程
func (s *ScheduleService) Delete(userID, scheduleID uint) error {
	result := s.db.Where("user_id = ?", userID).Delete(&db.DailySchedule{}, scheduleID)
	if result.Error != nil {
		return fmt.Errorf("delete schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// buildTasks 校验整组任务；同一日程内任务 ID 不能重复
func buildTasks(inputs []TaskInput) ([]db.Task, error) {
	tasks := make([]db.Task, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, input := range inputs {
		task, err := buildTask(input)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if _, dup := seen[task.ID]; dup {
			return nil, validationError("duplicate task id %q", task.ID)
		}
		seen[task.ID] = struct{}{}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func buildTask(input TaskInput) (db.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return db.Task{}, validationError("task title is required")
	}
	if input.EstimatedTime == nil {
		return db.Task{}, validationError("task estimatedTime is required")
	}
	if *input.EstimatedTime < 0 {
		return db.Task{}, validationError("estimatedTime must not be negative")
	}

	priority, err := normalizePriority(input.Priority)
	if err != nil {
		return db.Task{}, err
	}
	status, err := normalizeTaskStatus(input.Status)
	if err != nil {
		return db.Task{}, err
	}
	startTime, err := validateClockTime("startTime", input.StartTime)
	if err != nil {
		return db.Task{}, err
	}
	endTime, err := validateClockTime("endTime", input.EndTime)
	if err != nil {
		return db.Task{}, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return db.Task{
		ID:            id,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Priority:      priority,
		Status:        status,
		EstimatedTime: *input.EstimatedTime,
		StartTime:     startTime,
		EndTime:       endTime,
	}, nil
}
