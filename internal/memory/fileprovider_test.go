package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edisonhq/edison/internal/pathio"
)

func TestFileProvider_SaveAndSearch(t *testing.T) {
	clock := pathio.FixedClock{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := NewFileProvider(t.TempDir(), clock)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "session-insight", "the widget task finished cleanly"))
	require.NoError(t, p.Save(ctx, "session-insight", "unrelated note about gadgets"))

	result, err := p.Search(ctx, "widget", 5)
	require.NoError(t, err)
	assert.Contains(t, result, "widget task finished")
	assert.NotContains(t, result, "gadgets")
}

func TestFileProvider_SearchEmptyDirReturnsEmpty(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)
	result, err := p.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFileProvider_SanitizesKindForDirectoryTraversal(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)
	require.NoError(t, p.Save(context.Background(), "../../etc", "content"))

	result, err := p.Search(context.Background(), "content", 5)
	require.NoError(t, err)
	assert.Contains(t, result, "content")
}

func TestFileProvider_Name(t *testing.T) {
	p := NewFileProvider(t.TempDir(), nil)
	assert.Equal(t, "file", p.Name())
}
