package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteKV {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewSQLiteKV(db)
}

func TestSQLiteKV_GetMissing(t *testing.T) {
	kv := setupTestDB(t)

	value, found, err := kv.Get(context.Background(), "tasks")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestSQLiteKV_SetOverwrites(t *testing.T) {
	kv := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "tasks", "[]"))
	require.NoError(t, kv.Set(ctx, "tasks", `[{"id":"1"}]`))

	value, found, err := kv.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":"1"}]`, value)
}

func TestSQLiteKV_BacksStore(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.UpsertTask(ctx, sampleTask("a")))
	tasks := store.ListTasks(ctx)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].ID)
}

func TestNewDB_CreatesParentDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "diary.db")
	db, err := NewDB(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.FileExists(t, dsn)
}
