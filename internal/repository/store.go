package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"postpone-diary/internal/model"
)

// Keys of the two persisted collections.
const (
	TasksKey         = "tasks"
	PostponementsKey = "postponements"
)

// ErrTaskNotFound is returned when no task carries the requested id.
var ErrTaskNotFound = errors.New("task not found")

// Store is the gateway over the tasks and postponements collections.
// Every write rewrites the whole collection; reads never fail.
type Store struct {
	kv KV
	mu sync.Mutex
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// ListTasks returns all tasks, or an empty slice when the collection is
// missing or unreadable.
func (s *Store) ListTasks(ctx context.Context) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTasks(ctx)
}

// FindTask looks a task up by id.
func (s *Store) FindTask(ctx context.Context, id string) (*model.Task, error) {
	for _, task := range s.ListTasks(ctx) {
		if task.ID == id {
			return &task, nil
		}
	}
	return nil, ErrTaskNotFound
}

// UpsertTask replaces the task with the same id or appends it.
func (s *Store) UpsertTask(ctx context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	replaced := false
	for i := range tasks {
		if tasks[i].ID == task.ID {
			tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		tasks = append(tasks, task)
	}
	if err := s.save(ctx, TasksKey, tasks); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// DeleteTask drops the task with the given id. Missing ids are not an error.
// Postponements of the task are kept.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadTasks(ctx)
	filtered := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ID != id {
			filtered = append(filtered, task)
		}
	}
	if err := s.save(ctx, TasksKey, filtered); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListPostponements returns the full postponement log.
func (s *Store) ListPostponements(ctx context.Context) []model.Postponement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadPostponements(ctx)
}

// ListPostponementsForTask filters the log by task id, in insertion order.
func (s *Store) ListPostponementsForTask(ctx context.Context, taskID string) []model.Postponement {
	var out []model.Postponement
	for _, p := range s.ListPostponements(ctx) {
		if p.TaskID == taskID {
			out = append(out, p)
		}
	}
	return out
}

// AppendPostponement numbers p after the existing records of its task and
// appends it to the log. p.PostponementNumber is overwritten.
func (s *Store) AppendPostponement(ctx context.Context, p *model.Postponement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadPostponements(ctx)
	number := 1
	for _, existing := range entries {
		if existing.TaskID == p.TaskID {
			number++
		}
	}
	p.PostponementNumber = number

	entries = append(entries, *p)
	if err := s.save(ctx, PostponementsKey, entries); err != nil {
		return fmt.Errorf("save postponement: %w", err)
	}
	return nil
}

func (s *Store) loadTasks(ctx context.Context) []model.Task {
	return loadList[model.Task](ctx, s.kv, TasksKey)
}

func (s *Store) loadPostponements(ctx context.Context) []model.Postponement {
	return loadList[model.Postponement](ctx, s.kv, PostponementsKey)
}

// loadList decodes a JSON array stored under key. Missing, unreadable or
// malformed values yield an empty slice; the failure is only logged.
func loadList[T any](ctx context.Context, kv KV, key string) []T {
	raw, found, err := kv.Get(ctx, key)
	if err != nil {
		log.Printf("read %s: %v", key, err)
		return []T{}
	}
	if !found || raw == "" {
		return []T{}
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("decode %s: %v", key, err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(data))
}
