package project

import (
	"time"

	"github.com/caesarsage/mini-pm/internal/task"
)

// Project groups tasks for a single owner.
type Project struct {
	ID          int64        `json:"id"`
	OwnerID     int64        `json:"ownerId"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Tasks       []*task.Item `json:"tasks"`
}

// New creates a project owned by ownerID
func New(ownerID int64, title, description string) *Project {
	return &Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		Tasks:       []*task.Item{},
	}
}

// OwnedBy reports whether userID owns the project.
func (p *Project) OwnedBy(userID int64) bool {
	return p.OwnerID == userID
}

// Progress returns completed and total task counts.
func (p *Project) Progress() (done, total int) {
	for _, t := range p.Tasks {
		if t.IsComplete() {
			done++
		}
	}
	return done, len(p.Tasks)
}
