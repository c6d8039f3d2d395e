package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postpone-diary/internal/model"
	"postpone-diary/internal/repository"
)

type recordingMilestones struct {
	counts []int
}

func (r *recordingMilestones) NotifyMilestone(_ context.Context, postponements []model.Postponement, now time.Time) bool {
	r.counts = append(r.counts, TrailingWeekCount(postponements, now))
	return false
}

func newTestTaskService(t *testing.T) (*TaskService, *repository.Store, *repository.MemoryKV, *recordingMilestones) {
	t.Helper()
	kv := repository.NewMemoryKV()
	store := repository.NewStore(kv)
	milestones := &recordingMilestones{}
	svc := NewTaskService(store, milestones)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc, store, kv, milestones
}

func TestTaskService_PostponeScenario(t *testing.T) {
	svc, store, _, milestones := newTestTaskService(t)
	ctx := context.Background()

	created, err := svc.AddTask(ctx, TaskInput{Title: "  Raporu yazmak ", Category: model.CategorySchool}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Raporu yazmak", created.Title)
	assert.Equal(t, model.StatusPending, created.Status)

	postponedAt := testNow.Add(time.Minute)
	p, err := svc.PostponeTask(ctx, created.ID, "Yorgunum", postponedAt)
	require.NoError(t, err)
	assert.Equal(t, 1, p.PostponementNumber)
	assert.Equal(t, created.ID, p.TaskID)

	task, err := svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPostponed, task.Status)
	assert.True(t, task.UpdatedAt.Equal(postponedAt))

	stats := BuildStatistics(store.ListTasks(ctx), store.ListPostponements(ctx), postponedAt)
	for _, c := range model.Categories {
		want := 0
		if c == model.CategorySchool {
			want = 1
		}
		assert.Equal(t, want, stats.CategoryBreakdown[c], string(c))
	}
	assert.Equal(t, []int{1}, milestones.counts)
}

func TestTaskService_PostponementNumbersIncrease(t *testing.T) {
	svc, _, _, _ := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, TaskInput{Title: "Spor"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, task.Category)

	for i := 1; i <= 3; i++ {
		p, err := svc.PostponeTask(ctx, task.ID, "Zamanım yok", testNow.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, i, p.PostponementNumber)
	}
	assert.Len(t, svc.History(ctx, task.ID), 3)
}

func TestTaskService_Validation(t *testing.T) {
	svc, store, _, _ := newTestTaskService(t)
	ctx := context.Background()

	_, err := svc.AddTask(ctx, TaskInput{Title: "   "}, testNow)
	assert.ErrorIs(t, err, ErrTitleRequired)
	assert.Empty(t, store.ListTasks(ctx))

	task, err := svc.AddTask(ctx, TaskInput{Title: "Okuma"}, testNow)
	require.NoError(t, err)

	_, err = svc.PostponeTask(ctx, task.ID, " ", testNow)
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.Empty(t, store.ListPostponements(ctx))

	_, err = svc.PostponeTask(ctx, "missing", "Yorgunum", testNow)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)

	_, err = svc.RenameTask(ctx, task.ID, "", testNow)
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestTaskService_InitialReasonMarksPostponed(t *testing.T) {
	svc, store, _, _ := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, TaskInput{Title: "Dişçi", Category: model.CategoryHealth, InitialPostponeReason: "Zor görünüyor"}, testNow)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPostponed, task.Status)
	assert.Equal(t, "Zor görünüyor", task.InitialPostponeReason)
	assert.Empty(t, store.ListPostponements(ctx))
}

func TestTaskService_CompleteCancelRename(t *testing.T) {
	svc, _, _, _ := newTestTaskService(t)
	ctx := context.Background()

	a, err := svc.AddTask(ctx, TaskInput{Title: "a"}, testNow)
	require.NoError(t, err)
	b, err := svc.AddTask(ctx, TaskInput{Title: "b"}, testNow)
	require.NoError(t, err)
	c, err := svc.AddTask(ctx, TaskInput{Title: "c"}, testNow)
	require.NoError(t, err)

	done, err := svc.CompleteTask(ctx, a.ID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, done.Status)

	_, err = svc.CancelTask(ctx, b.ID, testNow.Add(time.Hour))
	require.NoError(t, err)

	renamed, err := svc.RenameTask(ctx, c.ID, "c2", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "c2", renamed.Title)
	assert.False(t, renamed.UpdatedAt.Before(renamed.CreatedAt))

	open, closed := svc.ListTasks(ctx)
	require.Len(t, open, 1)
	assert.Equal(t, c.ID, open[0].ID)
	require.Len(t, closed, 1)
	assert.Equal(t, a.ID, closed[0].ID)

	_, err = svc.PostponeTask(ctx, a.ID, "Yorgunum", testNow)
	assert.ErrorIs(t, err, ErrTaskClosed)
}

func TestTaskService_DeleteKeepsHistory(t *testing.T) {
	svc, store, _, _ := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, TaskInput{Title: "Temizlik", Category: model.CategoryPersonal}, testNow)
	require.NoError(t, err)
	_, err = svc.PostponeTask(ctx, task.ID, "Motivasyonum yok", testNow)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, task.ID))
	_, err = svc.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)

	stats := BuildStatistics(store.ListTasks(ctx), store.ListPostponements(ctx), testNow)
	assert.Equal(t, 1, stats.TotalPostponements)
	assert.Equal(t, 0, sumCategories(stats))
	assert.Equal(t, 1, stats.Orphaned)
}

func TestTaskService_WriteFailureSurfaces(t *testing.T) {
	svc, store, kv, _ := newTestTaskService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, TaskInput{Title: "Fatura"}, testNow)
	require.NoError(t, err)

	kv.SetErr = errors.New("read-only file system")
	_, err = svc.CompleteTask(ctx, task.ID, testNow)
	assert.ErrorIs(t, err, kv.SetErr)
	_, err = svc.PostponeTask(ctx, task.ID, "Yorgunum", testNow)
	assert.ErrorIs(t, err, kv.SetErr)

	kv.SetErr = nil
	assert.Empty(t, store.ListPostponements(ctx))
	stored, err := svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestNewTimeOrderedID(t *testing.T) {
	a := newTimeOrderedID()
	b := newTimeOrderedID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
	assert.Equal(t, byte('7'), a[14])
}

func TestTaskService_PostponementCounts(t *testing.T) {
	svc, _, _, _ := newTestTaskService(t)
	ctx := context.Background()

	a, err := svc.AddTask(ctx, TaskInput{Title: "a"}, testNow)
	require.NoError(t, err)
	b, err := svc.AddTask(ctx, TaskInput{Title: "b", InitialPostponeReason: "Yorgunum"}, testNow)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.PostponeTask(ctx, a.ID, "Zamanım yok", testNow.Add(time.Duration(i+1)*time.Minute))
		require.NoError(t, err)
	}

	counts := svc.PostponementCounts(ctx)
	assert.Equal(t, 2, counts[a.ID])
	assert.Zero(t, counts[b.ID])
}
