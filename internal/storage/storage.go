package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/project"
	"github.com/caesarsage/mini-pm/internal/task"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Storage provides persistence for users, projects and tasks. Each
// implementation owns its own id sequences; Create* methods assign the id
// on the value passed in.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, u *auth.User) error
	LoadUserByName(ctx context.Context, username string) (*auth.User, error)

	// Project operations. Loaded projects include their tasks.
	CreateProject(ctx context.Context, p *project.Project) error
	LoadProject(ctx context.Context, id int64) (*project.Project, error)
	ListProjects(ctx context.Context, ownerID int64) ([]*project.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	// Task operations
	CreateTask(ctx context.Context, t *task.Item) error
	LoadTask(ctx context.Context, id int64) (*task.Item, error)
	SaveTask(ctx context.Context, t *task.Item) error
	DeleteTask(ctx context.Context, id int64) error
	LoadProjectTasks(ctx context.Context, projectID int64) ([]*task.Item, error)

	Close() error
}

// Open returns the backend named by backend. path is ignored for memory.
func Open(backend, path string, logger *slog.Logger) (Storage, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStorage(path)
	case "badger":
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		cfg.Logger = logger
		return OpenBadger(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// checkTask rejects tasks a backend must never persist.
func checkTask(t *task.Item) error {
	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("task %d: %w", t.ID, err)
	}
	return nil
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

// cloneProject copies p without its tasks; stores keep tasks separately.
func cloneProject(p *project.Project) *project.Project {
	c := *p
	c.Tasks = nil
	return &c
}

func cloneTask(t *task.Item) *task.Item {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

func sortProjects(ps []*project.Project) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}

func sortTasks(ts []*task.Item) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
