package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/service"
)

type taskPayload struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Priority      string   `json:"priority"`
	Status        string   `json:"status"`
	EstimatedTime *float64 `json:"estimatedTime"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
}

type taskUpdatePayload struct {
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	Priority      *string  `json:"priority"`
	Status        *string  `json:"status"`
	EstimatedTime *float64 `json:"estimatedTime"`
	StartTime     *string  `json:"startTime"`
	EndTime       *string  `json:"endTime"`
}

type schedulePayload struct {
	Date  string        `json:"date"`
	Tasks []taskPayload `json:"tasks"`
}

// schedulePatchPayload 只声明可修改字段，其余键在解码时被拒绝
type schedulePatchPayload struct {
	Date  *string        `json:"date"`
	Tasks *[]taskPayload `json:"tasks"`
}

type scheduleView struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"userId"`
	Date      string    `json:"date"`
	Tasks     []db.Task `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newScheduleView(schedule *db.DailySchedule) scheduleView {
	tasks := []db.Task(schedule.Tasks)
	if tasks == nil {
		tasks = []db.Task{}
	}
	return scheduleView{
		ID:        schedule.ID,
		UserID:    schedule.UserID,
		Date:      schedule.Date,
		Tasks:     tasks,
		CreatedAt: schedule.CreatedAt,
		UpdatedAt: schedule.UpdatedAt,
	}
}

func toTaskInput(payload taskPayload) service.TaskInput {
	return service.TaskInput{
		ID:            payload.ID,
		Title:         payload.Title,
		Description:   payload.Description,
		Priority:      payload.Priority,
		Status:        payload.Status,
		EstimatedTime: payload.EstimatedTime,
		StartTime:     payload.StartTime,
		EndTime:       payload.EndTime,
	}
}

func toTaskInputs(payloads []taskPayload) []service.TaskInput {
	inputs := make([]service.TaskInput, 0, len(payloads))
	for _, payload := range payloads {
		inputs = append(inputs, toTaskInput(payload))
	}
	return inputs
}

// UpsertSchedule 创建或替换某一天的日程，新建时返回 201
func (a *API) UpsertSchedule(c *gin.Context) {
	var payload schedulePayload
	if !bindJSON(c, &payload, "invalid schedule payload") {
		return
	}

	schedule, created, err := a.schedules.Upsert(currentUserID(c), payload.Date, toTaskInputs(payload.Tasks))
	if err != nil {
		respondServiceError(c, err, "error creating daily schedule")
		return
	}

	if created {
		respondData(c, http.StatusCreated, "daily schedule created successfully", newScheduleView(schedule))
		return
	}
	respondData(c, http.StatusOK, "daily schedule updated successfully", newScheduleView(schedule))
}

// ListSchedules 按日期升序返回当前用户的日程
func (a *API) ListSchedules(c *gin.Context) {
	schedules, err := a.schedules.List(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "error retrieving daily schedules")
		return
	}

	views := make([]scheduleView, 0, len(schedules))
	for i := range schedules {
		views = append(views, newScheduleView(&schedules[i]))
	}
	respondData(c, http.StatusOK, "daily schedules retrieved successfully", views)
}

// GetScheduleByDate 返回指定日期的日程
func (a *API) GetScheduleByDate(c *gin.Context) {
	schedule, err := a.schedules.GetByDate(currentUserID(c), c.Param("date"))
	if err != nil {
		respondServiceError(c, err, "error retrieving daily schedule")
		return
	}
	respondData(c, http.StatusOK, "daily schedule retrieved successfully", newScheduleView(schedule))
}

// PatchSchedule 修改日程的日期或任务列表，出现其他字段时返回 400
func (a *API) PatchSchedule(c *gin.Context) {
	scheduleID, ok := paramID(c, "scheduleId", service.ErrScheduleNotFound.Error())
	if !ok {
		return
	}

	var payload schedulePatchPayload
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "only date and tasks can be updated")
		return
	}

	patch := service.SchedulePatch{Date: payload.Date}
	if payload.Tasks != nil {
		tasks := toTaskInputs(*payload.Tasks)
		patch.Tasks = &tasks
	}

	schedule, err := a.schedules.Patch(currentUserID(c), scheduleID, patch)
	if err != nil {
		respondServiceError(c, err, "error updating daily schedule")
		return
	}
	respondData(c, http.StatusOK, "daily schedule updated successfully", newScheduleView(schedule))
}

// AddTask 向日程追加一个任务，请求体为 {"task": {...}}
func (a *API) AddTask(c *gin.Context) {
	scheduleID, ok := paramID(c, "scheduleId", service.ErrScheduleNotFound.Error())
	if !ok {
		return
	}

	var payload struct {
		Task *taskPayload `json:"task"`
	}
	if !bindJSON(c, &payload, "invalid task payload") {
		return
	}
	if payload.Task == nil {
		respondError(c, http.StatusBadRequest, "task is required")
		return
	}

	schedule, task, err := a.schedules.AddTask(currentUserID(c), scheduleID, toTaskInput(*payload.Task))
	if err != nil {
		respondServiceError(c, err, "error adding task")
		return
	}
	respondData(c, http.StatusOK, "task added successfully", gin.H{"id": schedule.ID, "task": task})
}

// UpdateTask 更新日程中的单个任务
func (a *API) UpdateTask(c *gin.Context) {
	scheduleID, ok := paramID(c, "scheduleId", service.ErrScheduleNotFound.Error())
	if !ok {
		return
	}

	var payload struct {
		Task *taskUpdatePayload `json:"task"`
	}
	if !bindJSON(c, &payload, "invalid task payload") {
		return
	}
	if payload.Task == nil {
		respondError(c, http.StatusBadRequest, "task is required")
		return
	}

	update := service.TaskUpdate{
		Title:         payload.Task.Title,
		Description:   payload.Task.Description,
		Priority:      payload.Task.Priority,
		Status:        payload.Task.Status,
		EstimatedTime: payload.Task.EstimatedTime,
		StartTime:     payload.Task.StartTime,
		EndTime:       payload.Task.EndTime,
	}
	schedule, task, err := a.schedules.UpdateTask(currentUserID(c), scheduleID, c.Param("taskId"), update)
	if err != nil {
		respondServiceError(c, err, "error updating task")
		return
	}
	respondData(c, http.StatusOK, "task updated successfully", gin.H{"id": schedule.ID, "task": task})
}

// DeleteTask 删除日程中的单个任务
func (a *API) DeleteTask(c *gin.Context) {
	scheduleID, ok := paramID(c, "scheduleId", service.ErrScheduleNotFound.Error())
	if !ok {
		return
	}

	schedule, err := a.schedules.DeleteTask(currentUserID(c), scheduleID, c.Param("taskId"))
	if err != nil {
		respondServiceError(c, err, "error deleting task")
		return
	}
	respondData(c, http.StatusOK, "task deleted successfully", newScheduleView(schedule))
}

// DeleteSchedule 删除整条日程
func (a *API) DeleteSchedule(c *gin.Context) {
	scheduleID, ok := paramID(c, "scheduleId", service.ErrScheduleNotFound.Error())
	if !ok {
		return
	}

	if err := a.schedules.Delete(currentUserID(c), scheduleID); err != nil {
		respondServiceError(c, err, "error deleting daily schedule")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "daily schedule deleted successfully"})
}
