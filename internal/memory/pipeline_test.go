package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edisonhq/edison/internal/entity"
)

type fakeProvider struct {
	name        string
	saveErr     error
	saved       []string
	structured  []map[string]any
	structErr   error
	indexCalled bool
	indexErr    error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Search(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}
func (f *fakeProvider) Save(_ context.Context, _ string, content string) error {
	f.saved = append(f.saved, content)
	return f.saveErr
}
func (f *fakeProvider) SaveStructured(_ context.Context, _ string, record map[string]any) error {
	f.structured = append(f.structured, record)
	return f.structErr
}
func (f *fakeProvider) Index(_ context.Context) error {
	f.indexCalled = true
	return f.indexErr
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "file"}
	r.Register(p)

	found, ok := r.Lookup("file")
	require.True(t, ok)
	assert.Same(t, p, found)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestBuildInsight_ClassifiesTasksAndExtractsVerdicts(t *testing.T) {
	session := &entity.Session{ID: "sess-1"}
	tasks := []*entity.Task{
		{ID: "t1", State: entity.TaskDone},
		{ID: "t2", State: entity.TaskValidated},
		{ID: "t3", State: entity.TaskBlocked},
		{ID: "t4", State: entity.TaskTodo},
	}
	qas := []*entity.QA{
		{TaskID: "t1", RoundHistory: []entity.RoundSummary{{Round: 1, Verdict: "approve"}}},
	}

	insight := BuildInsight(session, tasks, qas)

	assert.ElementsMatch(t, []string{"t1", "t2"}, insight.TasksCompleted)
	assert.Equal(t, []string{"t3"}, insight.TasksBlocked)
	assert.Equal(t, []string{"t1:approve"}, insight.QAVerdicts)
	assert.Contains(t, insight.Summary, "2 task(s)")
}

func TestPipeline_RunSaveStructured_PrefersStructuredSaver(t *testing.T) {
	reg := NewRegistry()
	p := &fakeProvider{name: "file"}
	reg.Register(p)
	pipeline := NewPipeline(reg, nil)

	session := &entity.Session{ID: "sess-1"}
	pipeline.Run(context.Background(), []string{"session-insights-v1", "provider-save-structured"}, session, nil, nil, "file")

	require.Len(t, p.structured, 1)
	assert.Empty(t, p.saved)
	assert.Equal(t, "sess-1", p.structured[0]["sessionId"])
}

func TestPipeline_RunIndex_CallsIndexerWhenImplemented(t *testing.T) {
	reg := NewRegistry()
	p := &fakeProvider{name: "file"}
	reg.Register(p)
	pipeline := NewPipeline(reg, nil)

	pipeline.Run(context.Background(), []string{"provider-index"}, &entity.Session{ID: "s"}, nil, nil, "file")

	assert.True(t, p.indexCalled)
}

func TestPipeline_FailsOpenOnProviderError(t *testing.T) {
	reg := NewRegistry()
	p := &fakeProvider{name: "file", structErr: errors.New("backend unavailable")}
	reg.Register(p)
	pipeline := NewPipeline(reg, nil)

	assert.NotPanics(t, func() {
		pipeline.Run(context.Background(), []string{"provider-save-structured"}, &entity.Session{ID: "s"}, nil, nil, "file")
	})
}

func TestPipeline_UnknownProviderIsSkippedSilently(t *testing.T) {
	reg := NewRegistry()
	pipeline := NewPipeline(reg, nil)

	assert.NotPanics(t, func() {
		pipeline.Run(context.Background(), []string{"provider-save-structured:provider=ghost"}, &entity.Session{ID: "s"}, nil, nil, "file")
	})
}

func TestParseStep_SplitsNameAndArgs(t *testing.T) {
	name, args := parseStep("provider-save-structured:provider=file,inputVar=x")
	assert.Equal(t, "provider-save-structured", name)
	assert.Equal(t, map[string]string{"provider": "file", "inputVar": "x"}, args)

	name, args = parseStep("session-insights-v1")
	assert.Equal(t, "session-insights-v1", name)
	assert.Nil(t, args)
}
