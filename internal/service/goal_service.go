package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goalpath/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrGoalNotFound 在目标不存在或不属于当前用户时返回
	ErrGoalNotFound = errors.New("goal not found")
	// ErrMilestoneNotFound 在里程碑不存在时返回
	ErrMilestoneNotFound = errors.New("milestone not found")
)

// GoalService 负责目标及其里程碑的读写
// 所有里程碑变动都会重算 Progress；读-改-写之间不加锁，后写覆盖先写
type GoalService struct {
	db *gorm.DB
}

// GoalInput 定义创建目标时可配置字段
type GoalInput struct {
	Title        string
	Description  string
	Category     string
	Step         int
	Priority     string
	Status       string
	TargetDate   time.Time
	Dependencies []uint
	Milestones   []MilestoneInput
}

// GoalUpdate 定义更新目标的字段，nil 表示保持原值
// Milestones 非 nil 时整体替换里程碑集合
type GoalUpdate struct {
	Title        *string
	Description  *string
	Category     *string
	Step         *int
	Priority     *string
	Status       *string
	TargetDate   *time.Time
	Dependencies *[]uint
	Milestones   *[]MilestoneInput
}

// MilestoneInput 定义新增或整体替换里程碑时的字段
// Completed 兼容旧客户端：仅在 Status 为空时生效
type MilestoneInput struct {
	ID             string
	Title          string
	Step           int
	Description    string
	TargetDate     time.Time
	Status         string
	Completed      *bool
	EveryDayAction bool
}

// MilestoneUpdate 定义单个里程碑的定点更新
type MilestoneUpdate struct {
	Title          *string
	Step           *int
	Description    *string
	TargetDate     *time.Time
	Status         *string
	EveryDayAction *bool
}

// DependencyRef 是依赖目标的展开视图
type DependencyRef struct {
	ID     uint
	Title  string
	Status string
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// Create 新建目标，初始里程碑会参与进度计算
func (s *GoalService) Create(userID uint, input GoalInput) (*db.Goal, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, validationError("description is required")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, validationError("category is required")
	}
	if input.TargetDate.IsZero() {
		return nil, validationError("targetDate is required")
	}
	if input.Step < 0 {
		return nil, validationError("step must not be negative")
	}

	priority, err := normalizePriority(input.Priority)
	if err != nil {
		return nil, err
	}
	status, err := normalizeProgressStatus(input.Status)
	if err != nil {
		return nil, err
	}
	milestones, err := buildMilestones(input.Milestones)
	if err != nil {
		return nil, err
	}

	goal := db.Goal{
		UserID:       userID,
		Title:        title,
		Description:  description,
		Category:     category,
		Step:         input.Step,
		Priority:     priority,
		Status:       status,
		TargetDate:   input.TargetDate,
		Dependencies: normalizeDependencies(input.Dependencies, 0),
		Milestones:   milestones,
	}
	goal.Progress = ComputeProgress(goal.Milestones)

	if err := s.db.Create(&goal).Error; err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	return &goal, nil
}

// ListByUser 返回用户的全部目标
func (s *GoalService) ListByUser(userID uint) ([]db.Goal, error) {
	var goals []db.Goal
	if err := s.db.Where("user_id = ?", userID).Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// Get 根据 ID 获取目标，不属于该用户的目标视为不存在
func (s *GoalService) Get(userID, goalID uint) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &goal, nil
}

// ResolveDependencies 展开目标引用的依赖；已被删除的依赖直接忽略
func (s *GoalService) ResolveDependencies(userID uint, goals ...db.Goal) (map[uint]DependencyRef, error) {
	ids := make([]uint, 0)
	seen := make(map[uint]struct{})
	for _, goal := range goals {
		for _, id := range goal.Dependencies {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	refs := make(map[uint]DependencyRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	var found []db.Goal
	if err := s.db.Select("id", "title", "status").
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&found).Error; err != nil {
		return nil, fmt.Errorf("resolve dependencies: %w", err)
	}

	for _, goal := range found {
		refs[goal.ID] = DependencyRef{ID: goal.ID, Title: goal.Title, Status: goal.Status}
	}
	return refs, nil
}

// Update 更新目标；若提供 Milestones 则整体替换，已完成的里程碑强制关闭 EveryDayAction
func (s *GoalService) Update(userID, goalID uint, update GoalUpdate) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	if update.Milestones != nil {
		milestones, err := buildMilestones(*update.Milestones)
		if err != nil {
			return nil, err
		}
		for i := range milestones {
			if milestones[i].Status == db.StatusComplete {
				milestones[i].EveryDayAction = false
			}
		}
		goal.Milestones = milestones
	}
	goal.Progress = ComputeProgress(goal.Milestones)

	if update.Title != nil {
		if title := strings.TrimSpace(*update.Title); title != "" {
			goal.Title = title
		}
	}
	if update.Description != nil {
		if description := strings.TrimSpace(*update.Description); description != "" {
			goal.Description = description
		}
	}
	if update.Category != nil {
		if category := strings.TrimSpace(*update.Category); category != "" {
			goal.Category = category
		}
	}
	// step 为 0 视为未提供
	if update.Step != nil && *update.Step != 0 {
		if *update.Step < 0 {
			return nil, validationError("step must not be negative")
		}
		goal.Step = *update.Step
	}
	if update.Priority != nil && strings.TrimSpace(*update.Priority) != "" {
		priority, err := normalizePriority(*update.Priority)
		if err != nil {
			return nil, err
		}
		goal.Priority = priority
	}
	if update.Status != nil && strings.TrimSpace(*update.Status) != "" {
		status, err := normalizeProgressStatus(*update.Status)
		if err != nil {
			return nil, err
		}
		goal.Status = status
	}
	if update.TargetDate != nil && !update.TargetDate.IsZero() {
		goal.TargetDate = *update.TargetDate
	}
	if update.Dependencies != nil {
		goal.Dependencies = normalizeDependencies(*update.Dependencies, goal.ID)
	}

	if err := s.db.Save(goal).Error; err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	return goal, nil
}

// Delete 删除目标，其他目标中指向它的依赖保持不变
func (s *GoalService) Delete(userID, goalID uint) error {
	result := s.db.Where("user_id = ?", userID).Delete(&db.Goal{}, goalID)
	if result.Error != nil {
		return fmt.Errorf("delete goal: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGoalNotFound
	}
	return nil
}

// ListMilestones 返回目标的里程碑
func (s *GoalService) ListMilestones(userID, goalID uint) ([]db.Milestone, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}
	return goal.Milestones, nil
}

// AddMilestone 在末尾追加里程碑并重算进度，里程碑 ID 总是由服务端生成
func (s *GoalService) AddMilestone(userID, goalID uint, input MilestoneInput) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	input.ID = ""
	milestone, err := buildMilestone(input)
	if err != nil {
		return nil, err
	}

	goal.Milestones = append(goal.Milestones, milestone)
	goal.Progress = ComputeProgress(goal.Milestones)

	if err := s.db.Save(goal).Error; err != nil {
		return nil, fmt.Errorf("add milestone: %w", err)
	}
	return goal, nil
}

// UpdateMilestone 定点更新里程碑，空字段保持原值
func (s *GoalService) UpdateMilestone(userID, goalID uint, milestoneID string, update MilestoneUpdate) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	idx := goal.MilestoneIndex(milestoneID)
	if idx < 0 {
		return nil, ErrMilestoneNotFound
	}
	milestone := &goal.Milestones[idx]

	if update.Title != nil {
		if title := strings.TrimSpace(*update.Title); title != "" {
			milestone.Title = title
		}
	}
	if update.Step != nil && *update.Step != 0 {
		if *update.Step < 0 {
			return nil, validationError("step must not be negative")
		}
		milestone.Step = *update.Step
	}
	if update.Description != nil {
		if description := strings.TrimSpace(*update.Description); description != "" {
			milestone.Description = description
		}
	}
	if update.TargetDate != nil && !update.TargetDate.IsZero() {
		milestone.TargetDate = *update.TargetDate
	}
	if update.Status != nil && strings.TrimSpace(*update.Status) != "" {
		status, err := normalizeProgressStatus(*update.Status)
		if err != nil {
			return nil, err
		}
		milestone.Status = status
	}
	if update.EveryDayAction != nil {
		milestone.EveryDayAction = *update.EveryDayAction
	}

	goal.Progress = ComputeProgress(goal.Milestones)

	if err := s.db.Save(goal).Error; err != nil {
		return nil, fmt.Errorf("update milestone: %w", err)
	}
	return goal, nil
}

// DeleteMilestone 删除里程碑并重算进度
func (s *GoalService) DeleteMilestone(userID, goalID uint, milestoneID string) (*db.Goal, error) {
	goal, err := s.Get(userID, goalID)
	if err != nil {
		return nil, err
	}

	idx := goal.MilestoneIndex(milestoneID)
	if idx < 0 {
		return nil, ErrMilestoneNotFound
	}

	remaining := make([]db.Milestone, 0, len(goal.Milestones)-1)
	remaining = append(remaining, goal.Milestones[:idx]...)
	remaining = append(remaining, goal.Milestones[idx+1:]...)
	goal.Milestones = remaining
	goal.Progress = ComputeProgress(goal.Milestones)

	if err := s.db.Save(goal).Error; err != nil {
		return nil, fmt.Errorf("delete milestone: %w", err)
	}
	return goal, nil
}

// buildMilestones 校验整组里程碑；同一目标内里程碑 ID 不能重复
func buildMilestones(inputs []MilestoneInput) ([]db.Milestone, error) {
	milestones := make([]db.Milestone, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, input := range inputs {
		milestone, err := buildMilestone(input)
		if err != nil {
			return nil, fmt.Errorf("milestone %d: %w", i, err)
		}
		if _, dup := seen[milestone.ID]; dup {
			return nil, validationError("duplicate milestone id %q", milestone.ID)
		}
		seen[milestone.ID] = struct{}{}
		milestones = append(milestones, milestone)
	}
	return milestones, nil
}

func buildMilestone(input MilestoneInput) (db.Milestone, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return db.Milestone{}, validationError("milestone title is required")
	}
	if input.TargetDate.IsZero() {
		return db.Milestone{}, validationError("milestone targetDate is required")
	}
	if input.Step < 0 {
		return db.Milestone{}, validationError("milestone step must not be negative")
	}

	rawStatus := input.Status
	if strings.TrimSpace(rawStatus) == "" && input.Completed != nil && *input.Completed {
		rawStatus = db.StatusComplete
	}
	status, err := normalizeProgressStatus(rawStatus)
	if err != nil {
		return db.Milestone{}, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return db.Milestone{
		ID:             id,
		Title:          title,
		Step:           input.Step,
		Description:    strings.TrimSpace(input.Description),
		TargetDate:     input.TargetDate,
		Status:         status,
		EveryDayAction: input.EveryDayAction,
	}, nil
}

// normalizeDependencies 去重并剔除 0 与自身引用，不做环检测
func normalizeDependencies(ids []uint, self uint) []uint {
	result := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 || id == self {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
