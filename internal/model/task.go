package model

import "time"

// Task status constants.
const (
	TaskStatusTodo  = "todo"
	TaskStatusDoing = "doing"
	TaskStatusDone  = "done"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusDoing, TaskStatusDone:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is a known task priority. Tasks do
// not use the critical level.
func ValidTaskPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID             int       `json:"id"`
	ProjectID      int       `json:"project_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	AssignedTo     int       `json:"assigned_to"`
	DueDate        time.Time `json:"due_date"`
	EstimatedHours *float64  `json:"estimated_hours"`
	CreatedBy      int       `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Participants are the auxiliary users attached to the task, distinct
	// from the primary assignee.
	Participants []int `json:"participants,omitempty"`
}

// TaskUpdate carries the fields of a partial task update. Nil means "not
// supplied". A nil Participants leaves the participant set alone; a non-nil
// one replaces it.
type TaskUpdate struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	AssignedTo     *int
	DueDate        *time.Time
	EstimatedHours *float64
	Participants   *[]int
}
