package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"postpone-diary/internal/model"
	"postpone-diary/internal/repository"
)

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrReasonRequired = errors.New("postponement reason is required")
	ErrTaskClosed     = errors.New("task is already closed")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title                 string
	Category              model.Category
	Deadline              *time.Time
	InitialPostponeReason string
}

type milestoneNotifier interface {
	NotifyMilestone(ctx context.Context, postponements []model.Postponement, now time.Time) bool
}

// TaskService wraps task-related business logic. Every mutation goes
// through the store; callers pass the current time in.
type TaskService struct {
	store      *repository.Store
	milestones milestoneNotifier
	newID      func() string
}

func NewTaskService(store *repository.Store, milestones milestoneNotifier) *TaskService {
	return &TaskService{store: store, milestones: milestones, newID: newTimeOrderedID}
}

// newTimeOrderedID returns a UUIDv7, whose leading bits are the creation
// timestamp.
func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *TaskService) AddTask(ctx context.Context, input TaskInput, now time.Time) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	category := input.Category
	if !category.Valid() {
		category = model.CategoryOther
	}

	reason := strings.TrimSpace(input.InitialPostponeReason)
	status := model.StatusPending
	if reason != "" {
		status = model.StatusPostponed
	}

	task := model.Task{
		ID:                    s.newID(),
		Title:                 title,
		Category:              category,
		Deadline:              input.Deadline,
		InitialPostponeReason: reason,
		Status:                status,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.UpsertTask(ctx, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks splits tasks into open (pending or postponed) and done ones.
// Cancelled tasks are in neither list.
func (s *TaskService) ListTasks(ctx context.Context) (open, done []model.Task) {
	for _, task := range s.store.ListTasks(ctx) {
		switch {
		case task.IsOpen():
			open = append(open, task)
		case task.Status == model.StatusDone:
			done = append(done, task)
		}
	}
	return open, done
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.store.FindTask(ctx, taskID)
}

// CompleteTask marks a task as done.
func (s *TaskService) CompleteTask(ctx context.Context, taskID string, now time.Time) (*model.Task, error) {
	return s.update(ctx, taskID, now, func(task *model.Task) error {
		task.Status = model.StatusDone
		return nil
	})
}

// CancelTask marks a task as cancelled without deleting it.
func (s *TaskService) CancelTask(ctx context.Context, taskID string, now time.Time) (*model.Task, error) {
	return s.update(ctx, taskID, now, func(task *model.Task) error {
		task.Status = model.StatusCancelled
		return nil
	})
}

func (s *TaskService) RenameTask(ctx context.Context, taskID, title string, now time.Time) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	return s.update(ctx, taskID, now, func(task *model.Task) error {
		task.Title = title
		return nil
	})
}

// PostponeTask logs a postponement with its reason, marks the task as
// postponed and checks the weekly milestones.
func (s *TaskService) PostponeTask(ctx context.Context, taskID, reason string, now time.Time) (*model.Postponement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	task, err := s.store.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsOpen() {
		return nil, ErrTaskClosed
	}

	postponement := model.Postponement{
		ID:     s.newID(),
		TaskID: task.ID,
		Date:   now,
		Reason: reason,
	}
	if err := s.store.AppendPostponement(ctx, &postponement); err != nil {
		return nil, err
	}

	task.Status = model.StatusPostponed
	touch(task, now)
	if err := s.store.UpsertTask(ctx, *task); err != nil {
		return nil, fmt.Errorf("postpone task: %w", err)
	}

	log.Printf("[info] task postponed id=%s number=%d", task.ID, postponement.PostponementNumber)

	if s.milestones != nil {
		s.milestones.NotifyMilestone(ctx, s.store.ListPostponements(ctx), now)
	}
	return &postponement, nil
}

// DeleteTask removes a task. Its postponements stay in the log.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	return s.store.DeleteTask(ctx, taskID)
}

// PostponementCounts returns how many times each task has been postponed.
func (s *TaskService) PostponementCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int)
	for _, p := range s.store.ListPostponements(ctx) {
		counts[p.TaskID]++
	}
	return counts
}

// History returns the postponements of one task in the order they happened.
func (s *TaskService) History(ctx context.Context, taskID string) []model.Postponement {
	return s.store.ListPostponementsForTask(ctx, taskID)
}

func (s *TaskService) update(ctx context.Context, taskID string, now time.Time, mutate func(*model.Task) error) (*model.Task, error) {
	task, err := s.store.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := mutate(task); err != nil {
		return nil, err
	}
	touch(task, now)
	if err := s.store.UpsertTask(ctx, *task); err != nil {
		return nil, err
	}
	return task, nil
}

// touch keeps UpdatedAt from ever preceding CreatedAt.
func touch(task *model.Task, now time.Time) {
	if now.Before(task.CreatedAt) {
		now = task.CreatedAt
	}
	task.UpdatedAt = now
}
