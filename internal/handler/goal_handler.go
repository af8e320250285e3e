package handler

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/service"
)

type milestonePayload struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Step           int    `json:"step"`
	Description    string `json:"description"`
	TargetDate     string `json:"targetDate"`
	Status         string `json:"status"`
	Completed      *bool  `json:"completed"`
	EveryDayAction bool   `json:"everyDayAction"`
}

type milestoneUpdatePayload struct {
	Title          *string `json:"title"`
	Step           *int    `json:"step"`
	Description    *string `json:"description"`
	TargetDate     *string `json:"targetDate"`
	Status         *string `json:"status"`
	Completed      *bool   `json:"completed"`
	EveryDayAction *bool   `json:"everyDayAction"`
}

type goalPayload struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	Step         int                `json:"step"`
	Priority     string             `json:"priority"`
	Status       string             `json:"status"`
	TargetDate   string             `json:"targetDate"`
	Dependencies []uint             `json:"dependencies"`
	Milestones   []milestonePayload `json:"milestones"`
}

type goalUpdatePayload struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	Category     *string             `json:"category"`
	Step         *int                `json:"step"`
	Priority     *string             `json:"priority"`
	Status       *string             `json:"status"`
	TargetDate   *string             `json:"targetDate"`
	Dependencies *[]uint             `json:"dependencies"`
	Milestones   *[]milestonePayload `json:"milestones"`
}

type milestoneView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Step            int       `json:"step,omitempty"`
	Description     string    `json:"description,omitempty"`
	DescriptionHTML string    `json:"descriptionHtml,omitempty"`
	TargetDate      time.Time `json:"targetDate"`
	Status          string    `json:"status"`
	Completed       bool      `json:"completed"`
	EveryDayAction  bool      `json:"everyDayAction"`
}

type dependencyView struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type goalView struct {
	ID              uint             `json:"id"`
	UserID          uint             `json:"userId"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DescriptionHTML string           `json:"descriptionHtml,omitempty"`
	Category        string           `json:"category"`
	Step            int              `json:"step,omitempty"`
	Priority        string           `json:"priority"`
	Status          string           `json:"status"`
	TargetDate      time.Time        `json:"targetDate"`
	Dependencies    []dependencyView `json:"dependencies"`
	Milestones      []milestoneView  `json:"milestones"`
	Progress        float64          `json:"progress"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// roundProgress 仅在展示时保留两位小数
func roundProgress(value float64) float64 {
	return math.Round(value*100) / 100
}

func newMilestoneView(milestone db.Milestone) milestoneView {
	return milestoneView{
		ID:              milestone.ID,
		Title:           milestone.Title,
		Step:            milestone.Step,
		Description:     milestone.Description,
		DescriptionHTML: renderMarkdown(milestone.Description),
		TargetDate:      milestone.TargetDate,
		Status:          milestone.Status,
		Completed:       milestone.Completed(),
		EveryDayAction:  milestone.EveryDayAction,
	}
}

func newMilestoneViews(milestones []db.Milestone) []milestoneView {
	views := make([]milestoneView, 0, len(milestones))
	for _, milestone := range milestones {
		views = append(views, newMilestoneView(milestone))
	}
	return views
}

// newGoalView 展开依赖；refs 中找不到的依赖（已删除或不属于该用户）直接略过
func newGoalView(goal db.Goal, refs map[uint]service.DependencyRef) goalView {
	dependencies := make([]dependencyView, 0, len(goal.Dependencies))
	for _, id := range goal.Dependencies {
		ref, ok := refs[id]
		if !ok {
			continue
		}
		dependencies = append(dependencies, dependencyView{ID: ref.ID, Title: ref.Title, Status: ref.Status})
	}

	return goalView{
		ID:              goal.ID,
		UserID:          goal.UserID,
		Title:           goal.Title,
		Description:     goal.Description,
		DescriptionHTML: renderMarkdown(goal.Description),
		Category:        goal.Category,
		Step:            goal.Step,
		Priority:        goal.Priority,
		Status:          goal.Status,
		TargetDate:      goal.TargetDate,
		Dependencies:    dependencies,
		Milestones:      newMilestoneViews(goal.Milestones),
		Progress:        roundProgress(goal.Progress),
		CreatedAt:       goal.CreatedAt,
		UpdatedAt:       goal.UpdatedAt,
	}
}

func (a *API) goalView(c *gin.Context, goal *db.Goal) (goalView, bool) {
	refs, err := a.goals.ResolveDependencies(goal.UserID, *goal)
	if err != nil {
		respondServiceError(c, err, "error retrieving goal dependencies")
		return goalView{}, false
	}
	return newGoalView(*goal, refs), true
}

func (a *API) parseOptionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return service.ParseDateInput(raw, a.loc)
}

func (a *API) toMilestoneInput(payload milestonePayload) (service.MilestoneInput, error) {
	targetDate, err := a.parseOptionalDate(payload.TargetDate)
	if err != nil {
		return service.MilestoneInput{}, err
	}
	return service.MilestoneInput{
		ID:             payload.ID,
		Title:          payload.Title,
		Step:           payload.Step,
		Description:    payload.Description,
		TargetDate:     targetDate,
		Status:         payload.Status,
		Completed:      payload.Completed,
		EveryDayAction: payload.EveryDayAction,
	}, nil
}

func (a *API) toMilestoneInputs(payloads []milestonePayload) ([]service.MilestoneInput, error) {
	inputs := make([]service.MilestoneInput, 0, len(payloads))
	for _, payload := range payloads {
		input, err := a.toMilestoneInput(payload)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// CreateGoal 新建目标
func (a *API) CreateGoal(c *gin.Context) {
	var payload goalPayload
	if !bindJSON(c, &payload, "invalid goal payload") {
		return
	}

	targetDate, err := a.parseOptionalDate(payload.TargetDate)
	if err != nil {
		respondServiceError(c, err, "error creating goal")
		return
	}
	milestones, err := a.toMilestoneInputs(payload.Milestones)
	if err != nil {
		respondServiceError(c, err, "error creating goal")
		return
	}

	goal, err := a.goals.Create(currentUserID(c), service.GoalInput{
		Title:        payload.Title,
		Description:  payload.Description,
		Category:     payload.Category,
		Step:         payload.Step,
		Priority:     payload.Priority,
		Status:       payload.Status,
		TargetDate:   targetDate,
		Dependencies: payload.Dependencies,
		Milestones:   milestones,
	})
	if err != nil {
		respondServiceError(c, err, "error creating goal")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusCreated, "goal created successfully", view)
}

// ListGoals 返回当前用户的目标，依赖与里程碑均已展开
func (a *API) ListGoals(c *gin.Context) {
	userID := currentUserID(c)
	goals, err := a.goals.ListByUser(userID)
	if err != nil {
		respondServiceError(c, err, "error retrieving goals")
		return
	}

	refs, err := a.goals.ResolveDependencies(userID, goals...)
	if err != nil {
		respondServiceError(c, err, "error retrieving goals")
		return
	}

	views := make([]goalView, 0, len(goals))
	for _, goal := range goals {
		views = append(views, newGoalView(goal, refs))
	}
	respondData(c, http.StatusOK, "goals retrieved successfully", views)
}

// GetGoal 返回单个目标
func (a *API) GetGoal(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	goal, err := a.goals.Get(currentUserID(c), goalID)
	if err != nil {
		respondServiceError(c, err, "error retrieving goal")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, "goal retrieved successfully", view)
}

// UpdateGoal 更新目标并重算进度；提供 milestones 时整体替换
func (a *API) UpdateGoal(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	var payload goalUpdatePayload
	if !bindJSON(c, &payload, "invalid goal payload") {
		return
	}

	update := service.GoalUpdate{
		Title:        payload.Title,
		Description:  payload.Description,
		Category:     payload.Category,
		Step:         payload.Step,
		Priority:     payload.Priority,
		Status:       payload.Status,
		Dependencies: payload.Dependencies,
	}
	if payload.TargetDate != nil {
		targetDate, err := a.parseOptionalDate(*payload.TargetDate)
		if err != nil {
			respondServiceError(c, err, "error updating goal")
			return
		}
		update.TargetDate = &targetDate
	}
	if payload.Milestones != nil {
		milestones, err := a.toMilestoneInputs(*payload.Milestones)
		if err != nil {
			respondServiceError(c, err, "error updating goal")
			return
		}
		update.Milestones = &milestones
	}

	goal, err := a.goals.Update(currentUserID(c), goalID, update)
	if err != nil {
		respondServiceError(c, err, "error updating goal")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, "goal updated successfully", view)
}

// DeleteGoal 删除目标
func (a *API) DeleteGoal(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	if err := a.goals.Delete(currentUserID(c), goalID); err != nil {
		respondServiceError(c, err, "error deleting goal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "goal deleted successfully"})
}

// ListMilestones 返回目标的全部里程碑
func (a *API) ListMilestones(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	milestones, err := a.goals.ListMilestones(currentUserID(c), goalID)
	if err != nil {
		respondServiceError(c, err, "error retrieving milestones")
		return
	}
	respondData(c, http.StatusOK, "milestones retrieved successfully", newMilestoneViews(milestones))
}

// AddMilestone 追加里程碑
func (a *API) AddMilestone(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	var payload milestonePayload
	if !bindJSON(c, &payload, "invalid milestone payload") {
		return
	}
	input, err := a.toMilestoneInput(payload)
	if err != nil {
		respondServiceError(c, err, "error adding milestone")
		return
	}

	goal, err := a.goals.AddMilestone(currentUserID(c), goalID, input)
	if err != nil {
		respondServiceError(c, err, "error adding milestone")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, "milestone added successfully", view)
}

// UpdateMilestone 定点更新里程碑
func (a *API) UpdateMilestone(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	var payload milestoneUpdatePayload
	if !bindJSON(c, &payload, "invalid milestone payload") {
		return
	}

	update := service.MilestoneUpdate{
		Title:          payload.Title,
		Step:           payload.Step,
		Description:    payload.Description,
		Status:         payload.Status,
		EveryDayAction: payload.EveryDayAction,
	}
	if update.Status == nil && payload.Completed != nil {
		status := db.StatusNotStarted
		if *payload.Completed {
			status = db.StatusComplete
		}
		update.Status = &status
	}
	if payload.TargetDate != nil {
		targetDate, err := a.parseOptionalDate(*payload.TargetDate)
		if err != nil {
			respondServiceError(c, err, "error updating milestone")
			return
		}
		update.TargetDate = &targetDate
	}

	goal, err := a.goals.UpdateMilestone(currentUserID(c), goalID, c.Param("milestoneId"), update)
	if err != nil {
		respondServiceError(c, err, "error updating milestone")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, "milestone updated successfully", view)
}

// DeleteMilestone 删除里程碑
func (a *API) DeleteMilestone(c *gin.Context) {
	goalID, ok := paramID(c, "goalId", service.ErrGoalNotFound.Error())
	if !ok {
		return
	}

	goal, err := a.goals.DeleteMilestone(currentUserID(c), goalID, c.Param("milestoneId"))
	if err != nil {
		respondServiceError(c, err, "error deleting milestone")
		return
	}

	view, ok := a.goalView(c, goal)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, "milestone deleted successfully", view)
}

// TriggerReminders 立即执行一次提醒批处理，与定时任务走同一路径
func (a *API) TriggerReminders(c *gin.Context) {
	summary, err := a.reminders.Run(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "error while sending goal reminders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "reminders sent if applicable",
		"goalsScanned":     summary.GoalsScanned,
		"reminders":        summary.Reminders,
		"usersNotified":    summary.UsersNotified,
		"usersSkipped":     summary.UsersSkipped,
		"dispatchFailures": summary.DispatchFailures,
	})
}
