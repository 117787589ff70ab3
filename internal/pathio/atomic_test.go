package pathio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_CreatesFileAndParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.txt")

	require.NoError(t, WriteAtomic(path, []byte("hello"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteAtomic_LeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, WriteAtomic(path, []byte("content"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name())
}

func TestWriteAtomic_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, WriteAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteAtomic(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMoveAtomic_MovesBetweenDirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "todo", "task.md")
	dst := filepath.Join(dir, "wip", "task.md")
	require.NoError(t, WriteAtomic(src, []byte("content"), 0o644))

	require.NoError(t, MoveAtomic(src, dst))

	assert.False(t, Exists(src))
	assert.True(t, Exists(dst))
}

func TestMoveAtomic_MissingSourceErrors(t *testing.T) {
	dir := t.TempDir()
	err := MoveAtomic(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	assert.Error(t, err)
}

func TestFileNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	nonEmpty := filepath.Join(dir, "nonempty.txt")
	require.NoError(t, WriteAtomic(empty, []byte{}, 0o644))
	require.NoError(t, WriteAtomic(nonEmpty, []byte("x"), 0o644))

	assert.False(t, FileNonEmpty(empty))
	assert.True(t, FileNonEmpty(nonEmpty))
	assert.False(t, FileNonEmpty(filepath.Join(dir, "missing.txt")))
}
