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
	ErrTodoNotFound     = errors.New("todo list not found")
	ErrTodoItemNotFound = errors.New("todo item not found")
)

const defaultTodoColor = "#3b82f6"

// TodoService 管理待办清单
type TodoService struct {
	db *gorm.DB
}

// TodoInput 创建清单的字段
type TodoInput struct {
	Name        string
	Description string
	Color       string
	Items       []string
}

// TodoUpdate 更新清单的字段，nil 表示保持原值
type TodoUpdate struct {
	Name        *string
	Description *string
	Color       *string
}

// TodoItemUpdate 更新条目的字段
type TodoItemUpdate struct {
	Title     *string
	Completed *bool
}

func NewTodoService(gdb *gorm.DB) *TodoService {
	return &TodoService{db: gdb}
}

// List 返回用户的清单，新建的在前
func (s *TodoService) List(userID uint) ([]db.TodoList, error) {
	var todos []db.TodoList
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) Get(userID, todoID uint) (*db.TodoList, error) {
	var todo db.TodoList
	if err := s.db.Where("id = ? AND user_id = ?", todoID, userID).First(&todo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return &todo, nil
}

func (s *TodoService) Create(userID uint, input TodoInput) (*db.TodoList, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = defaultTodoColor
	}

	now := time.Now()
	items := make([]db.TodoItem, 0, len(input.Items))
	for _, raw := range input.Items {
		title := strings.TrimSpace(raw)
		if title == "" {
			continue
		}
		items = append(items, db.TodoItem{ID: uuid.NewString(), Title: title, CreatedAt: now})
	}

	todo := db.TodoList{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Color:       color,
		Items:       items,
	}
	if err := s.db.Create(&todo).Error; err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return &todo, nil
}

func (s *TodoService) Update(userID, todoID uint, update TodoUpdate) (*db.TodoList, error) {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, validationError("name is required")
		}
		todo.Name = name
	}
	if update.Description != nil {
		todo.Description = strings.TrimSpace(*update.Description)
	}
	if update.Color != nil {
		if color := strings.TrimSpace(*update.Color); color != "" {
			todo.Color = color
		}
	}

	if err := s.db.Save(todo).Error; err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

func (s *TodoService) Delete(userID, todoID uint) error {
	result := s.db.Where("user_id = ?", userID).Delete(&db.TodoList{}, todoID)
	if result.Error != nil {
		return fmt.Errorf("delete todo: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

// AddItem 追加一个未完成的条目
func (s *TodoService) AddItem(userID, todoID uint, title string) (*db.TodoList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required")
	}

	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}
	todo.Items = append(todo.Items, db.TodoItem{ID: uuid.NewString(), Title: title, CreatedAt: time.Now()})

	if err := s.db.Save(todo).Error; err != nil {
		return nil, fmt.Errorf("add todo item: %w", err)
	}
	return todo, nil
}

func (s *TodoService) UpdateItem(userID, todoID uint, itemID string, update TodoItemUpdate) (*db.TodoList, error) {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}

	idx := todoItemIndex(todo.Items, itemID)
	if idx < 0 {
		return nil, ErrTodoItemNotFound
	}
	if update.Title != nil {
		if title := strings.TrimSpace(*update.Title); title != "" {
			todo.Items[idx].Title = title
		}
	}
	if update.Completed != nil {
		todo.Items[idx].Completed = *update.Completed
	}

	if err := s.db.Save(todo).Error; err != nil {
		return nil, fmt.Errorf("update todo item: %w", err)
	}
	return todo, nil
}

func (s *TodoService) DeleteItem(userID, todoID uint, itemID string) (*db.TodoList, error) {
	todo, err := s.Get(userID, todoID)
	if err != nil {
		return nil, err
	}

	idx := todoItemIndex(todo.Items, itemID)
	if idx < 0 {
		return nil, ErrTodoItemNotFound
	}
	remaining := make([]db.TodoItem, 0, len(todo.Items)-1)
	remaining = append(remaining, todo.Items[:idx]...)
	remaining = append(remaining, todo.Items[idx+1:]...)
	todo.Items = remaining

	if err := s.db.Save(todo).Error; err != nil {
		return nil, fmt.Errorf("delete todo item: %w", err)
	}
	return todo, nil
}

func todoItemIndex(items []db.TodoItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
