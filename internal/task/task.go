package task

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Spec is one entry of a scheduling request. Title identifies the task
// within the request; EstimatedHours and DueDate are carried through but
// never influence ordering.
type Spec struct {
	Title          string   `json:"title" yaml:"title" validate:"required"`
	EstimatedHours int      `json:"estimatedHours,omitempty" yaml:"estimatedHours,omitempty" validate:"gte=0"`
	DueDate        string   `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" validate:"dive,required"`
}

// Item is a task stored under a project.
type Item struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"projectId"`
	Title       string     `json:"title"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// New creates a pending task for the given project
func New(projectID int64, title string, due *time.Time) *Item {
	return &Item{
		ProjectID: projectID,
		Title:     title,
		DueDate:   due,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// IsComplete checks if task has been marked done
func (t *Item) IsComplete() bool {
	return t.Status == StatusCompleted
}

// SetCompleted moves the task between pending and completed.
func (t *Item) SetCompleted(done bool, now time.Time) {
	if done {
		if t.Status != StatusCompleted {
			t.Status = StatusCompleted
			completed := now.UTC()
			t.CompletedAt = &completed
		}
		return
	}
	t.Status = StatusPending
	t.CompletedAt = nil
}

// Overdue reports whether an open task is past its due date.
func (t *Item) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.IsComplete() {
		return false
	}
	return now.After(*t.DueDate)
}
