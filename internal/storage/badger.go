package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/caesarsage/mini-pm/internal/auth"
	"github.com/caesarsage/mini-pm/internal/project"
	"github.com/caesarsage/mini-pm/internal/task"
)

const (
	userPrefix     = "user/"
	usernamePrefix = "username/"
	projectPrefix  = "project/"
	taskPrefix     = "task/"

	seqBandwidth = 64

	// maxTxnAttempts bounds retries of a transaction that lost a
	// conflict with a concurrent writer.
	maxTxnAttempts = 5
)

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	InMemory   bool
	SyncWrites bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger

	NumVersionsToKeep int
}

// DefaultBadgerConfig returns durable settings for on-disk use.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		SyncWrites:        true,
		NumVersionsToKeep: 1,
	}
}

// InMemoryBadgerConfig returns settings for tests: no disk I/O, no syncs.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore keeps records as JSON values in an embedded badger database.
// Ids come from badger sequences, one per record kind.
type BadgerStore struct {
	db *badger.DB

	userSeq    *badger.Sequence
	projectSeq *badger.Sequence
	taskSeq    *badger.Sequence
}

// OpenBadger opens (or creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db}
	for key, seq := range map[string]**badger.Sequence{
		"seq/user":    &s.userSeq,
		"seq/project": &s.projectSeq,
		"seq/task":    &s.taskSeq,
	} {
		*seq, err = db.GetSequence([]byte(key), seqBandwidth)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open sequence %s: %w", key, err)
		}
	}
	return s, nil
}

// update runs fn in a read-write transaction, retrying when badger aborts it
// because a concurrent transaction touched the same keys. A conflict that
// survives every attempt is reported as ErrConflict.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", ErrConflict)
}

// idKey zero-pads ids so prefix iteration yields ascending id order.
func idKey(prefix string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, id))
}

// nextID maps badger's zero-based sequence onto ids starting at 1.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return int64(n) + 1, nil
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// scan decodes every value under prefix, in key order, and hands it to fn.
func scan[T any](txn *badger.Txn, prefix string, fn func(*T)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		fn(&v)
	}
	return nil
}

func (s *BadgerStore) CreateUser(_ context.Context, u *auth.User) error {
	id, err := nextID(s.userSeq)
	if err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		nameKey := []byte(usernamePrefix + u.Username)
		if _, err := txn.Get(nameKey); err == nil {
			return fmt.Errorf("user %q: %w", u.Username, ErrConflict)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		u.ID = id
		if err := txn.Set(nameKey, []byte(strconv.FormatInt(id, 10))); err != nil {
			return err
		}
		return setJSON(txn, idKey(userPrefix, id), u)
	})
}

func (s *BadgerStore) LoadUserByName(_ context.Context, username string) (*auth.User, error) {
	var u auth.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(usernamePrefix + username))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt username index for %q: %w", username, err)
		}
		return getJSON(txn, idKey(userPrefix, id), &u)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *BadgerStore) CreateProject(_ context.Context, p *project.Project) error {
	id, err := nextID(s.projectSeq)
	if err != nil {
		return err
	}
	p.ID = id
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, idKey(projectPrefix, id), cloneProject(p))
	})
}

func (s *BadgerStore) LoadProject(_ context.Context, id int64) (*project.Project, error) {
	var p project.Project
	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, idKey(projectPrefix, id), &p); err != nil {
			return err
		}
		tasks, err := projectTasks(txn, id)
		p.Tasks = tasks
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BadgerStore) ListProjects(_ context.Context, ownerID int64) ([]*project.Project, error) {
	projects := []*project.Project{}
	err := s.db.View(func(txn *badger.Txn) error {
		if err := scan(txn, projectPrefix, func(p *project.Project) {
			if p.OwnedBy(ownerID) {
				projects = append(projects, p)
			}
		}); err != nil {
			return err
		}
		for _, p := range projects {
			tasks, err := projectTasks(txn, p.ID)
			if err != nil {
				return err
			}
			p.Tasks = tasks
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// DeleteProject removes the project and every task that belongs to it in
// one transaction.
func (s *BadgerStore) DeleteProject(_ context.Context, id int64) error {
	err := s.update(func(txn *badger.Txn) error {
		key := idKey(projectPrefix, id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		tasks, err := projectTasks(txn, id)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if err := txn.Delete(idKey(taskPrefix, t.ID)); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("project", id)
	}
	return err
}

func (s *BadgerStore) CreateTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	id, err := nextID(s.taskSeq)
	if err != nil {
		return err
	}

	err = s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(projectPrefix, t.ProjectID)); err != nil {
			return err
		}
		t.ID = id
		return setJSON(txn, idKey(taskPrefix, id), t)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("project", t.ProjectID)
	}
	return err
}

func (s *BadgerStore) LoadTask(_ context.Context, id int64) (*task.Item, error) {
	var t task.Item
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, idKey(taskPrefix, id), &t)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BadgerStore) SaveTask(_ context.Context, t *task.Item) error {
	if err := checkTask(t); err != nil {
		return err
	}
	err := s.update(func(txn *badger.Txn) error {
		key := idKey(taskPrefix, t.ID)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return setJSON(txn, key, t)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("task", t.ID)
	}
	return err
}

func (s *BadgerStore) DeleteTask(_ context.Context, id int64) error {
	err := s.update(func(txn *badger.Txn) error {
		key := idKey(taskPrefix, id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound("task", id)
	}
	return err
}

func (s *BadgerStore) LoadProjectTasks(_ context.Context, projectID int64) ([]*task.Item, error) {
	var tasks []*task.Item
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(projectPrefix, projectID)); err != nil {
			return err
		}
		var err error
		tasks, err = projectTasks(txn, projectID)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("project", projectID)
	}
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func projectTasks(txn *badger.Txn, projectID int64) ([]*task.Item, error) {
	tasks := []*task.Item{}
	err := scan(txn, taskPrefix, func(t *task.Item) {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	})
	return tasks, err
}

// Close releases the id sequences and closes the database.
func (s *BadgerStore) Close() error {
	var errs []error
	for _, seq := range []*badger.Sequence{s.userSeq, s.projectSeq, s.taskSeq} {
		if seq != nil {
			errs = append(errs, seq.Release())
		}
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
