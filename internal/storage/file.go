package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/project"
	"github.com/caesarsage/mini-pm/internal/task"
)

const (
	usersDir    = "users"
	projectsDir = "projects"
	tasksDir    = "tasks"
)

// FileStorage implements Storage using file-based JSON persistence, one
// document per record under baseDir/{users,projects,tasks}/<id>.json.
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex

	userSeq    atomic.Int64
	projectSeq atomic.Int64
	taskSeq    atomic.Int64
}

// NewFileStorage creates a new file-based storage instance. Id sequences
// continue from the highest id already on disk.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if baseDir == "" {
		return nil, errors.New("file storage: base directory is required")
	}

	fs := &FileStorage{baseDir: baseDir}
	seqs := map[string]*atomic.Int64{
		usersDir:    &fs.userSeq,
		projectsDir: &fs.projectSeq,
		tasksDir:    &fs.taskSeq,
	}
	for dir, seq := range seqs {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
		ids, err := fs.ids(dir)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			seq.Store(ids[len(ids)-1])
		}
	}

	return fs, nil
}

func (fs *FileStorage) path(dir string, id int64) string {
	return filepath.Join(fs.baseDir, dir, strconv.FormatInt(id, 10)+".json")
}

// writeJSON replaces the record atomically via a temp file and rename.
func (fs *FileStorage) writeJSON(dir string, id int64, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %d: %w", dir, id, err)
	}

	target := fs.path(dir, id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", dir, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s file: %w", dir, err)
	}
	return nil
}

func (fs *FileStorage) readJSON(dir string, id int64, v any) error {
	data, err := os.ReadFile(fs.path(dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound(strings.TrimSuffix(dir, "s"), id)
		}
		return fmt.Errorf("failed to read %s file: %w", dir, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s %d: %w", dir, id, err)
	}
	return nil
}

func (fs *FileStorage) remove(dir string, id int64) error {
	if err := os.Remove(fs.path(dir, id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(strings.TrimSuffix(dir, "s"), id)
		}
		return fmt.Errorf("failed to delete %s file: %w", dir, err)
	}
	return nil
}

// ids returns the record ids in dir in ascending order.
func (fs *FileStorage) ids(dir string) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(fs.baseDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s directory: %w", dir, err)
	}

	var ids []int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), ".json"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (fs *FileStorage) CreateUser(_ context.Context, u *auth.User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.findUser(u.Username); err == nil {
		return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	u.ID = fs.userSeq.Add(1)
	return fs.writeJSON(usersDir, u.ID, u)
}

func (fs *FileStorage) LoadUserByName(_ context.Context, username string) (*auth.User, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.findUser(username)
}

func (fs *FileStorage) findUser(username string) (*auth.User, error) {
	ids, err := fs.ids(usersDir)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		var u auth.User
		if err := fs.readJSON(usersDir, id, &u); err != nil {
			return nil, err
		}
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
}

func (fs *FileStorage) CreateProject(_ context.Context, p *project.Project) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p.ID = fs.projectSeq.Add(1)
	return fs.writeJSON(projectsDir, p.ID, cloneProject(p))
}

func (fs *FileStorage) LoadProject(_ context.Context, id int64) (*project.Project, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.loadProject(id)
}

func (fs *FileStorage) loadProject(id int64) (*project.Project, error) {
	var p project.Project
	if err := fs.readJSON(projectsDir, id, &p); err != nil {
		return nil, err
	}
	tasks, err := fs.projectTasks(id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return &p, nil
}

func (fs *FileStorage) ListProjects(_ context.Context, ownerID int64) ([]*project.Project, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	ids, err := fs.ids(projectsDir)
	if err != nil {
		return nil, err
	}

	projects := []*project.Project{}
	for _, id := range ids {
		p, err := fs.loadProject(id)
		if err != nil {
			return nil, err
		}
		if p.OwnedBy(ownerID) {
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// DeleteProject removes every task of the project, then the project.
func (fs *FileStorage) DeleteProject(_ context.Context, id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.path(projectsDir, id)); err != nil {
		if os.IsNotExist(err) {
			return notFound("project", id)
		}
		return fmt.Errorf("failed to stat project file: %w", err)
	}

	// tasks first: a failed delete must not orphan task documents
	tasks, err := fs.projectTasks(id)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := fs.remove(tasksDir, t.ID); err != nil {
			return err
		}
	}
	return fs.remove(projectsDir, id)
}

func (fs *FileStorage) CreateTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.path(projectsDir, t.ProjectID)); err != nil {
		if os.IsNotExist(err) {
			return notFound("project", t.ProjectID)
		}
		return fmt.Errorf("failed to stat project file: %w", err)
	}

	t.ID = fs.taskSeq.Add(1)
	return fs.writeJSON(tasksDir, t.ID, t)
}

func (fs *FileStorage) LoadTask(_ context.Context, id int64) (*task.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var t task.Item
	if err := fs.readJSON(tasksDir, id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (fs *FileStorage) SaveTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.path(tasksDir, t.ID)); err != nil {
		if os.IsNotExist(err) {
			return notFound("task", t.ID)
		}
		return fmt.Errorf("failed to stat task file: %w", err)
	}
	return fs.writeJSON(tasksDir, t.ID, t)
}

func (fs *FileStorage) DeleteTask(_ context.Context, id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.remove(tasksDir, id)
}

func (fs *FileStorage) LoadProjectTasks(_ context.Context, projectID int64) ([]*task.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := os.Stat(fs.path(projectsDir, projectID)); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("project", projectID)
		}
		return nil, fmt.Errorf("failed to stat project file: %w", err)
	}
	return fs.projectTasks(projectID)
}

func (fs *FileStorage) projectTasks(projectID int64) ([]*task.Item, error) {
	ids, err := fs.ids(tasksDir)
	if err != nil {
		return nil, err
	}

	tasks := []*task.Item{}
	for _, id := range ids {
		var t task.Item
		if err := fs.readJSON(tasksDir, id, &t); err != nil {
			return nil, err
		}
		if t.ProjectID == projectID {
			tasks = append(tasks, &t)
		}
	}
	return tasks, nil
}

func (fs *FileStorage) Close() error { return nil }
