package db

import (
	"time"

	"gorm.io/datatypes"
)

// TodoList 是简单的待办清单，Items 整体存储
type TodoList struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"index;not null"`
	Name        string `gorm:"not null"`
	Description string
	Color       string `gorm:"size:32"`
	Items       datatypes.JSONSlice[TodoItem]
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoItem 待办条目
type TodoItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}
