package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/pathio"
)

func TestRepositoryScanner_FindsStaleLockFiles(t *testing.T) {
	dir := t.TempDir()
	repo := entity.NewTaskRepository(dir)

	todoDir := filepath.Join(dir, "todo")
	require.NoError(t, os.MkdirAll(todoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(todoDir, "p0-widget.md.lock"), []byte("pid:1234"), 0o644))

	scanner := &RepositoryScanner[*entity.Task]{Repo: repo}
	candidates := scanner.StaleIDs()

	require.Len(t, candidates, 1)
	assert.Equal(t, "p0-widget", candidates[0].ID)
	assert.Equal(t, "todo", candidates[0].State)
}

func TestRepositoryScanner_IgnoresNonLockFiles(t *testing.T) {
	dir := t.TempDir()
	repo := entity.NewTaskRepository(dir)
	todoDir := filepath.Join(dir, "todo")
	require.NoError(t, os.MkdirAll(todoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(todoDir, "p0-widget.md"), []byte("---\n"), 0o644))

	scanner := &RepositoryScanner[*entity.Task]{Repo: repo}
	assert.Empty(t, scanner.StaleIDs())
}

func TestStaleLockJob_RemovesAgedLocksAcrossScanners(t *testing.T) {
	dir := t.TempDir()
	repo := entity.NewTaskRepository(dir)
	todoDir := filepath.Join(dir, "todo")
	require.NoError(t, os.MkdirAll(todoDir, 0o755))
	lockPath := filepath.Join(todoDir, "p0-widget.md.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte(""), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	job := &StaleLockJob{Scanners: []StaleLockScanner{&RepositoryScanner[*entity.Task]{Repo: repo}}}
	reclaimed, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	assert.False(t, pathio.Exists(lockPath))
}

func TestStaleLockJob_Name(t *testing.T) {
	job := &StaleLockJob{}
	assert.Equal(t, "stale-lock-scan", job.Name())
}

func TestStaleRoundJob_WarnsWithoutMutatingRounds(t *testing.T) {
	root := t.TempDir()
	roundDir := filepath.Join(root, "p0-widget", "round-1")
	require.NoError(t, os.MkdirAll(roundDir, 0o755))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(roundDir, old, old))

	job := &StaleRoundJob{EvidenceRoot: root, MaxAge: time.Hour, Clock: pathio.SystemClock{}}
	flagged, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	// The round directory must still exist untouched — the job only logs.
	entries, err := os.ReadDir(roundDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStaleRoundJob_FlagsTaskPastMaxRounds(t *testing.T) {
	root := t.TempDir()
	for _, n := range []int{1, 2, 3, 4} {
		roundDir := filepath.Join(root, "p0-widget", fmt.Sprintf("round-%d", n))
		require.NoError(t, os.MkdirAll(roundDir, 0o755))
	}

	job := &StaleRoundJob{EvidenceRoot: root, MaxAge: time.Hour, MaxRounds: 3, Clock: pathio.SystemClock{}}
	flagged, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)
}

func TestStaleRoundJob_SkipsApprovedRounds(t *testing.T) {
	root := t.TempDir()
	roundDir := filepath.Join(root, "p0-widget", "round-1")
	require.NoError(t, os.MkdirAll(roundDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(roundDir, "bundle-approved.json"), []byte("{}"), 0o644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(roundDir, old, old))

	job := &StaleRoundJob{EvidenceRoot: root, MaxAge: time.Hour}
	flagged, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, flagged)
}

func TestStaleRoundJob_MissingEvidenceRootIsNotAnError(t *testing.T) {
	job := &StaleRoundJob{EvidenceRoot: filepath.Join(t.TempDir(), "missing"), MaxAge: time.Hour}
	flagged, err := job.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, flagged)
}
