package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/project"
	"github.com/caesarsage/mini-pm/internal/task"
)

// MemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	userSeq    atomic.Int64
	projectSeq atomic.Int64
	taskSeq    atomic.Int64

	mu        sync.RWMutex
	users     map[int64]*auth.User
	usernames map[string]int64
	projects  map[int64]*project.Project
	tasks     map[int64]*task.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]*auth.User),
		usernames: make(map[string]int64),
		projects:  make(map[int64]*project.Project),
		tasks:     make(map[int64]*task.Item),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.usernames[u.Username]; taken {
		return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	}
	u.ID = m.userSeq.Add(1)
	m.users[u.ID] = cloneUser(u)
	m.usernames[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) LoadUserByName(_ context.Context, username string) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[username]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryStore) CreateProject(_ context.Context, p *project.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.projectSeq.Add(1)
	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *MemoryStore) LoadProject(_ context.Context, id int64) (*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	return m.withTasks(p), nil
}

func (m *MemoryStore) ListProjects(_ context.Context, ownerID int64) ([]*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := []*project.Project{}
	for _, p := range m.projects {
		if p.OwnedBy(ownerID) {
			projects = append(projects, m.withTasks(p))
		}
	}
	sortProjects(projects)
	return projects, nil
}

// withTasks must be called with mu held.
func (m *MemoryStore) withTasks(p *project.Project) *project.Project {
	c := cloneProject(p)
	c.Tasks = m.projectTasks(p.ID)
	return c
}

func (m *MemoryStore) projectTasks(projectID int64) []*task.Item {
	tasks := []*task.Item{}
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sortTasks(tasks)
	return tasks
}

func (m *MemoryStore) DeleteProject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[id]; !ok {
		return notFound("project", id)
	}
	delete(m.projects, id)
	for tid, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

func (m *MemoryStore) CreateTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[t.ProjectID]; !ok {
		return notFound("project", t.ProjectID)
	}
	t.ID = m.taskSeq.Add(1)
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *MemoryStore) LoadTask(_ context.Context, id int64) (*task.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	return cloneTask(t), nil
}

func (m *MemoryStore) SaveTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; !ok {
		return notFound("task", t.ID)
	}
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStore) LoadProjectTasks(_ context.Context, projectID int64) ([]*task.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.projects[projectID]; !ok {
		return nil, notFound("project", projectID)
	}
	return m.projectTasks(projectID), nil
}

func (m *MemoryStore) Close() error { return nil }
