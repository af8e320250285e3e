package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/service"
)

type todoPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Items       []string `json:"items"`
}

type todoUpdatePayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type todoItemPayload struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

type todoView struct {
	ID          uint          `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
	Items       []db.TodoItem `json:"items"`
	Completed   int           `json:"completedCount"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func newTodoView(todo *db.TodoList) todoView {
	items := []db.TodoItem(todo.Items)
	if items == nil {
		items = []db.TodoItem{}
	}
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	return todoView{
		ID:          todo.ID,
		Name:        todo.Name,
		Description: todo.Description,
		Color:       todo.Color,
		Items:       items,
		Completed:   completed,
		CreatedAt:   todo.CreatedAt,
		UpdatedAt:   todo.UpdatedAt,
	}
}

// ListTodos 返回当前用户的待办清单
func (a *API) ListTodos(c *gin.Context) {
	todos, err := a.todos.List(currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "error retrieving todo lists")
		return
	}

	views := make([]todoView, 0, len(todos))
	for i := range todos {
		views = append(views, newTodoView(&todos[i]))
	}
	respondData(c, http.StatusOK, "todo lists retrieved successfully", views)
}

func (a *API) GetTodo(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	todo, err := a.todos.Get(currentUserID(c), todoID)
	if err != nil {
		respondServiceError(c, err, "error retrieving todo list")
		return
	}
	respondData(c, http.StatusOK, "todo list retrieved successfully", newTodoView(todo))
}

func (a *API) CreateTodo(c *gin.Context) {
	var payload todoPayload
	if !bindJSON(c, &payload, "invalid todo payload") {
		return
	}

	todo, err := a.todos.Create(currentUserID(c), service.TodoInput{
		Name:        payload.Name,
		Description: payload.Description,
		Color:       payload.Color,
		Items:       payload.Items,
	})
	if err != nil {
		respondServiceError(c, err, "error creating todo list")
		return
	}
	respondData(c, http.StatusCreated, "todo list created successfully", newTodoView(todo))
}

func (a *API) UpdateTodo(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	var payload todoUpdatePayload
	if !bindJSON(c, &payload, "invalid todo payload") {
		return
	}

	todo, err := a.todos.Update(currentUserID(c), todoID, service.TodoUpdate{
		Name:        payload.Name,
		Description: payload.Description,
		Color:       payload.Color,
	})
	if err != nil {
		respondServiceError(c, err, "error updating todo list")
		return
	}
	respondData(c, http.StatusOK, "todo list updated successfully", newTodoView(todo))
}

func (a *API) DeleteTodo(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	if err := a.todos.Delete(currentUserID(c), todoID); err != nil {
		respondServiceError(c, err, "error deleting todo list")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "todo list deleted successfully"})
}

// AddTodoItem 追加条目，请求体为 {"title": "..."}
func (a *API) AddTodoItem(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	var payload todoItemPayload
	if !bindJSON(c, &payload, "invalid todo item payload") {
		return
	}
	title := ""
	if payload.Title != nil {
		title = *payload.Title
	}

	todo, err := a.todos.AddItem(currentUserID(c), todoID, title)
	if err != nil {
		respondServiceError(c, err, "error adding todo item")
		return
	}
	respondData(c, http.StatusCreated, "todo item added successfully", newTodoView(todo))
}

func (a *API) UpdateTodoItem(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	var payload todoItemPayload
	if !bindJSON(c, &payload, "invalid todo item payload") {
		return
	}

	todo, err := a.todos.UpdateItem(currentUserID(c), todoID, c.Param("itemId"), service.TodoItemUpdate{
		Title:     payload.Title,
		Completed: payload.Completed,
	})
	if err != nil {
		respondServiceError(c, err, "error updating todo item")
		return
	}
	respondData(c, http.StatusOK, "todo item updated successfully", newTodoView(todo))
}

func (a *API) DeleteTodoItem(c *gin.Context) {
	todoID, ok := paramID(c, "todoId", service.ErrTodoNotFound.Error())
	if !ok {
		return
	}

	todo, err := a.todos.DeleteItem(currentUserID(c), todoID, c.Param("itemId"))
	if err != nil {
		respondServiceError(c, err, "error deleting todo item")
		return
	}
	respondData(c, http.StatusOK, "todo item deleted successfully", newTodoView(todo))
}
