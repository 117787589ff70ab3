package entity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edisonhq/edison/internal/pathio"
)

func TestMoveAndSave_MovesAndEncodesAtDestinationOnly(t *testing.T) {
	dir := t.TempDir()
	repo := NewTaskRepository(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskTodo), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskWIP), 0o755))

	task := &Task{ID: "p0-widget", Title: "widget", State: TaskTodo}
	require.NoError(t, repo.Save(context.Background(), task))

	task.SetRecordState(TaskWIP)
	require.NoError(t, repo.MoveAndSave(context.Background(), task.ID, TaskTodo, task))

	assert.False(t, pathio.Exists(repo.statePath(TaskTodo, task.ID)))
	assert.True(t, pathio.Exists(repo.statePath(TaskWIP, task.ID)))

	got, found, err := repo.Get(task.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, TaskWIP, got.State)
}

func TestMoveAndSave_NeverObservableInBothDirectoriesAtOnce(t *testing.T) {
	dir := t.TempDir()
	repo := NewTaskRepository(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskTodo), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskWIP), 0o755))

	task := &Task{ID: "p0-widget", Title: "widget", State: TaskTodo}
	require.NoError(t, repo.Save(context.Background(), task))

	task.SetRecordState(TaskWIP)
	require.NoError(t, repo.MoveAndSave(context.Background(), task.ID, TaskTodo, task))

	found := repo.findStates(task.ID)
	assert.Len(t, found, 1)
	assert.Equal(t, TaskWIP, found[0])
}

func TestMoveAndSave_FailsWhenSourceMissing(t *testing.T) {
	dir := t.TempDir()
	repo := NewTaskRepository(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskTodo), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskWIP), 0o755))

	task := &Task{ID: "p0-widget", Title: "widget", State: TaskWIP}
	err := repo.MoveAndSave(context.Background(), task.ID, TaskTodo, task)
	assert.Error(t, err)
}

func TestMoveAndSave_SameStateRewritesInPlace(t *testing.T) {
	dir := t.TempDir()
	repo := NewTaskRepository(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(repo.BaseDir, TaskTodo), 0o755))

	task := &Task{ID: "p0-widget", Title: "widget", State: TaskTodo}
	require.NoError(t, repo.Save(context.Background(), task))

	task.Title = "renamed"
	require.NoError(t, repo.MoveAndSave(context.Background(), task.ID, TaskTodo, task))

	got, found, err := repo.Get(task.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "renamed", got.Title)
}
