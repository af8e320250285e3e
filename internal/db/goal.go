package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	StatusNotStarted = "not-started"
	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
)

// Goal 是目标聚合根
// Milestones 以 JSON 数组整体存储在目标行内，目标是唯一所有者；保存即整体替换
// Dependencies 只记录其他目标的 ID（弱引用），删除目标时不做级联清理
// Progress 由里程碑派生，只在里程碑集合变动时重算
type Goal struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	Title        string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	Category     string
	Step         int
	Priority     string `gorm:"size:16"`
	Status       string `gorm:"size:16;index"`
	TargetDate   time.Time
	Dependencies datatypes.JSONSlice[uint]
	Milestones   datatypes.JSONSlice[Milestone]
	Progress     float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Milestone 是目标内的子目标，没有独立于目标之外的身份
type Milestone struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Step           int       `json:"step,omitempty"`
	Description    string    `json:"description,omitempty"`
	TargetDate     time.Time `json:"targetDate"`
	Status         string    `json:"status"`
	EveryDayAction bool      `json:"everyDayAction"`
}

// Completed 是 status 的布尔视图
func (m Milestone) Completed() bool {
	return m.Status == StatusComplete
}

// MilestoneIndex 返回指定 ID 的里程碑下标，不存在时返回 -1
func (g *Goal) MilestoneIndex(id string) int {
	for i := range g.Milestones {
		if g.Milestones[i].ID == id {
			return i
		}
	}
	return -1
}
