package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScheduler(t *testing.T, run func(context.Context, Definition, string) (Report, error)) *Scheduler {
	t.Helper()
	s := NewScheduler(t.TempDir(), "", 4, time.Second, nil)
	s.LookPath = func(string) (string, error) { return "/usr/bin/true", nil }
	s.Run = run
	return s
}

func TestRunWaves_ApprovedWaveContinuesToNext(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictApprove}, nil
	})
	roster := map[string][]Annotated{
		"critical":      {{Definition: Definition{ID: "lint", Blocking: true, Engine: "lint-engine"}}},
		"comprehensive": {{Definition: Definition{ID: "deep", Blocking: true, Engine: "deep-engine"}}},
	}
	specs := map[string]WaveSpec{
		"critical":      {Name: "critical", ContinueOnFail: true},
		"comprehensive": {Name: "comprehensive", RequiresPreviousPass: true},
	}

	results := s.RunWaves(context.Background(), roster, []string{"critical", "comprehensive"}, specs)

	require.Len(t, results, 2)
	assert.Equal(t, VerdictApprove, results[0].Verdict)
	assert.Equal(t, VerdictApprove, results[1].Verdict)
	assert.False(t, results[1].Skipped)
}

func TestRunWaves_RejectBlocksRequiresPreviousPassWave(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictReject}, nil
	})
	roster := map[string][]Annotated{
		"critical":      {{Definition: Definition{ID: "lint", Blocking: true, Engine: "lint-engine"}}},
		"comprehensive": {{Definition: Definition{ID: "deep", Blocking: true, Engine: "deep-engine"}}},
	}
	specs := map[string]WaveSpec{
		"critical":      {Name: "critical"},
		"comprehensive": {Name: "comprehensive", RequiresPreviousPass: true},
	}

	results := s.RunWaves(context.Background(), roster, []string{"critical", "comprehensive"}, specs)

	require.Len(t, results, 2)
	assert.Equal(t, VerdictReject, results[0].Verdict)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, VerdictBlocked, results[1].Verdict)
}

func TestRunWaves_StopsWithoutContinueOnFail(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictReject}, nil
	})
	roster := map[string][]Annotated{
		"critical":      {{Definition: Definition{ID: "lint", Blocking: true, Engine: "lint-engine"}}},
		"comprehensive": {{Definition: Definition{ID: "deep", Blocking: true, Engine: "deep-engine"}}},
	}
	specs := map[string]WaveSpec{
		"critical":      {Name: "critical", ContinueOnFail: false},
		"comprehensive": {Name: "comprehensive"},
	}

	results := s.RunWaves(context.Background(), roster, []string{"critical", "comprehensive"}, specs)
	assert.Len(t, results, 1)
}

func TestRunWave_NonBlockingFailureDoesNotRejectWave(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictReject}, nil
	})
	roster := map[string][]Annotated{
		"critical": {{Definition: Definition{ID: "advisory", Blocking: false, Engine: "eng"}}},
	}
	results := s.RunWaves(context.Background(), roster, []string{"critical"}, map[string]WaveSpec{"critical": {Name: "critical"}})
	require.Len(t, results, 1)
	assert.Equal(t, VerdictApprove, results[0].Verdict)
}

func TestRunOne_EngineUnavailableNonBlockingDegradesToPending(t *testing.T) {
	s := testScheduler(t, func(context.Context, Definition, string) (Report, error) {
		return Report{}, errors.New("boom")
	})
	s.LookPath = func(string) (string, error) { return "", errors.New("not found") }

	report := s.runOne(context.Background(), Definition{ID: "v1", Engine: "missing-engine", Blocking: false})
	assert.Equal(t, VerdictPending, report.Verdict)
}

func TestRunOne_ContextMissingMarkerBlocksValidator(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictApprove}, nil
	})
	report := s.runOne(context.Background(), Definition{ID: "v1", Engine: "eng", Context7Packages: []string{"react"}})
	assert.Equal(t, VerdictBlocked, report.Verdict)
	assert.Contains(t, report.Note, "react")
}

func TestRunWithTimeout_DeadlineExceededWritesBlockedReport(t *testing.T) {
	s := testScheduler(t, func(ctx context.Context, def Definition, _ string) (Report, error) {
		<-ctx.Done()
		return Report{}, ctx.Err()
	})
	s.Timeout = 5 * time.Millisecond

	report, err := s.runWithTimeout(context.Background(), Definition{ID: "slow", Engine: "eng"}, "eng")
	require.NoError(t, err)
	assert.Equal(t, VerdictBlocked, report.Verdict)
	assert.Contains(t, report.Note, "timed out")
}

func TestScheduler_WritesReportToRoundDir(t *testing.T) {
	s := testScheduler(t, func(_ context.Context, def Definition, _ string) (Report, error) {
		return Report{ValidatorID: def.ID, Verdict: VerdictApprove}, nil
	})
	roster := map[string][]Annotated{"critical": {{Definition: Definition{ID: "lint", Blocking: true, Engine: "eng"}}}}
	s.RunWaves(context.Background(), roster, []string{"critical"}, map[string]WaveSpec{"critical": {Name: "critical"}})

	assert.FileExists(t, filepath.Join(s.RoundDir, "lint-report.json"))
}

func TestDelegate_WritesDelegationFileAndPendingReport(t *testing.T) {
	s := testScheduler(t, nil)
	s.LookPath = func(string) (string, error) { return "", errors.New("not on PATH") }
	roster := map[string][]Annotated{"critical": {{Definition: Definition{ID: "human-review", Blocking: false, Engine: "external-tool"}}}}

	results := s.RunWaves(context.Background(), roster, []string{"critical"}, map[string]WaveSpec{"critical": {Name: "critical"}})
	require.Len(t, results, 1)
	assert.Equal(t, VerdictApprove, results[0].Verdict)
	assert.FileExists(t, filepath.Join(s.RoundDir, "delegation-human-review.md"))
}

func TestLoadWaveResults_ReconstructsFromDisk(t *testing.T) {
	roundDir := t.TempDir()
	report := Report{ValidatorID: "lint", Verdict: VerdictReject}
	data, err := os.ReadFile(writeTestReport(t, roundDir, report))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	roster := map[string][]Annotated{"critical": {{Definition: Definition{ID: "lint", Blocking: true}}}}
	results := LoadWaveResults(roundDir, roster, []string{"critical"})

	require.Len(t, results, 1)
	assert.Equal(t, VerdictReject, results[0].Verdict)
}

func writeTestReport(t *testing.T, roundDir string, r Report) string {
	t.Helper()
	path := filepath.Join(roundDir, r.ValidatorID+"-report.json")
	data := []byte(`{"validatorId":"` + r.ValidatorID + `","verdict":"` + string(r.Verdict) + `"}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestComputeBundleApproval_ApprovedWhenAllBlockingApprove(t *testing.T) {
	roster := map[string][]Annotated{
		"critical": {{Definition: Definition{ID: "lint", Blocking: true}}},
	}
	waves := []WaveResult{{Wave: "critical", Reports: map[string]Report{"lint": {Verdict: VerdictApprove}}}}

	approval := ComputeBundleApproval("task-1", 1, waves, roster)
	assert.True(t, approval.Approved)
	assert.Equal(t, "approve", approval.Verdict)
}

func TestComputeBundleApproval_RejectedWhenBlockingMemberFails(t *testing.T) {
	roster := map[string][]Annotated{
		"critical": {{Definition: Definition{ID: "lint", Blocking: true}}},
	}
	waves := []WaveResult{{Wave: "critical", Reports: map[string]Report{"lint": {Verdict: VerdictReject}}}}

	approval := ComputeBundleApproval("task-1", 1, waves, roster)
	assert.False(t, approval.Approved)
	assert.Equal(t, "reject", approval.Verdict)
}
