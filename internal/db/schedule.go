package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in-progress"
	TaskStatusComplete   = "complete"

	// DayKeyFormat 是日程日期键的格式
	DayKeyFormat = "2006-01-02"
)

// DailySchedule 记录用户某一天的日程
// UserID + Date 的唯一性由 upsert 逻辑保证，不建唯一索引
type DailySchedule struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index:idx_schedule_user_date;not null"`
	Date      string `gorm:"size:10;index:idx_schedule_user_date;not null"`
	Tasks     datatypes.JSONSlice[Task]
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 固定表名
func (DailySchedule) TableName() string {
	return "daily_schedules"
}

// Task 是日程中的时间块任务，EstimatedTime 单位为分钟
type Task struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	Priority      string  `json:"priority"`
	Status        string  `json:"status"`
	EstimatedTime float64 `json:"estimatedTime"`
	StartTime     string  `json:"startTime,omitempty"`
	EndTime       string  `json:"endTime,omitempty"`
}

// TaskIndex 返回指定 ID 的任务下标，不存在时返回 -1
func (s *DailySchedule) TaskIndex(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
