package domain

import (
	"strings"
	"time"
)

// TaskStatus is the workflow column a task sits in. Any status may move to any other.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "inprogress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Statuses lists every status in board order.
func Statuses() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusInProgress, StatusCompleted}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a unit of work tracked on the board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"dueDate"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	SprintID    string     `json:"sprintId,omitempty"`
}

// TaskInput carries the caller-supplied fields of a new task.
type TaskInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	Priority    Priority  `json:"priority"`
	SprintID    string    `json:"sprintId,omitempty"`
}

// Validate mirrors the add-task form: a title and a due date are mandatory.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return Invalid("title", "please enter a task title")
	}
	if in.DueDate.IsZero() {
		return Invalid("dueDate", "please select a due date")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return Invalid("priority", "must be low, medium or high")
	}
	return nil
}

// Validate checks a full task record before it replaces a stored one.
func (t Task) Validate() error {
	if t.ID == "" {
		return Invalid("id", "required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return Invalid("title", "please enter a task title")
	}
	if !t.Priority.Valid() {
		return Invalid("priority", "must be low, medium or high")
	}
	if !t.Status.Valid() {
		return Invalid("status", "must be todo, inprogress or completed")
	}
	return nil
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == StatusCompleted
}

// DueWithin reports whether the due date falls in [from, to].
func (t *Task) DueWithin(from, to time.Time) bool {
	if t == nil {
		return false
	}
	return !t.DueDate.Before(from) && !t.DueDate.After(to)
}
