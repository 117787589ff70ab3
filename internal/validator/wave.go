package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/edisonhq/edison/internal/evidence"
	"github.com/edisonhq/edison/internal/logging"
	"github.com/edisonhq/edison/internal/pathio"
)

// Verdict is a validator's (or a wave's) outcome (spec.md §4.I "Execution"
// step 2 fixed report schema).
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictBlocked Verdict = "blocked"
	VerdictPending Verdict = "pending"
)

// Finding is one report entry (spec.md §4.I step 2 "findings with
// severity/category/location/recommendation").
type Finding struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Location       string `json:"location"`
	Recommendation string `json:"recommendation"`
}

// Report is the fixed JSON schema a validator child process writes to
// <round-dir>/<validator-id>-report.json.
type Report struct {
	ValidatorID string         `json:"validatorId"`
	Verdict     Verdict        `json:"verdict"`
	Findings    []Finding      `json:"findings,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
	Tracking    map[string]any `json:"tracking,omitempty"`
	Note        string         `json:"note,omitempty"`
}

// WaveSpec carries the per-wave retry/skip policy (spec.md §4.I step 4-5).
type WaveSpec struct {
	Name                 string
	RequiresPreviousPass bool
	ContinueOnFail       bool
}

// Scheduler runs a roster's waves to completion (spec.md §4.I "Execution").
type Scheduler struct {
	RoundDir    string
	SnapshotDir string
	Concurrency int
	Timeout     time.Duration
	Log         *logging.Logger

	// LookPath resolves whether a validator's engine is runnable, defaulting
	// to exec.LookPath. Overridable for tests.
	LookPath func(engine string) (string, error)
	// Run executes one validator's engine against roundDir, defaulting to
	// runEngineProcess (spawns the engine binary as a child process and
	// reads back its JSON report). Overridable for tests.
	Run func(ctx context.Context, def Definition, roundDir string) (Report, error)
}

// NewScheduler builds a Scheduler with the default process-based executor.
func NewScheduler(roundDir, snapshotDir string, concurrency int, timeout time.Duration, log *logging.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Scheduler{
		RoundDir:    roundDir,
		SnapshotDir: snapshotDir,
		Concurrency: concurrency,
		Timeout:     timeout,
		Log:         log,
		LookPath:    exec.LookPath,
		Run:         runEngineProcess,
	}
}

// WaveResult is one wave's outcome: a report per validator plus the
// computed wave verdict.
type WaveResult struct {
	Wave     string
	Reports  map[string]Report
	Verdict  Verdict
	Skipped  bool
	SkipNote string
}

// RunWaves executes waves in waveOrder, honoring requires_previous_pass and
// continue_on_fail (spec.md §4.I steps 4-5), and returns one WaveResult per
// wave actually attempted.
func (s *Scheduler) RunWaves(ctx context.Context, roster map[string][]Annotated, waveOrder []string, specs map[string]WaveSpec) []WaveResult {
	var results []WaveResult
	var previous *WaveResult

	for _, wave := range waveOrder {
		members := roster[wave]
		spec := specs[wave]

		if spec.RequiresPreviousPass && (previous == nil || previous.Verdict != VerdictApprove) {
			r := WaveResult{Wave: wave, Verdict: VerdictBlocked, Skipped: true, SkipNote: "requires_previous_pass not satisfied"}
			results = append(results, r)
			previous = &results[len(results)-1]
			continue
		}

		r := s.runWave(ctx, wave, members)
		results = append(results, r)
		previous = &results[len(results)-1]

		if r.Verdict != VerdictApprove && !spec.ContinueOnFail {
			break
		}
	}
	return results
}

func (s *Scheduler) runWave(ctx context.Context, wave string, members []Annotated) WaveResult {
	var executable, delegated []Annotated
	for _, m := range members {
		if _, err := s.LookPath(m.Engine); err == nil {
			executable = append(executable, m)
		} else {
			delegated = append(delegated, m)
		}
	}

	p := pool.NewWithResults[Report]().WithMaxGoroutines(s.Concurrency)
	for _, m := range executable {
		m := m
		p.Go(func() Report {
			return s.runOne(ctx, m.Definition)
		})
	}
	for _, m := range delegated {
		m := m
		p.Go(func() Report {
			return s.delegate(m.Definition)
		})
	}
	reports := map[string]Report{}
	for _, r := range p.Wait() {
		reports[r.ValidatorID] = r
	}

	verdict := VerdictApprove
	for _, m := range members {
		r, ok := reports[m.ID]
		if !ok {
			continue
		}
		if m.Blocking && (r.Verdict == VerdictReject || r.Verdict == VerdictBlocked) {
			verdict = VerdictReject
		}
	}
	return WaveResult{Wave: wave, Reports: reports, Verdict: verdict}
}

// runOne runs a single executable validator, applying Context7 pre-flight,
// the per-validator timeout, and primary/fallback engine retry (spec.md
// §4.I "Fallback").
func (s *Scheduler) runOne(ctx context.Context, def Definition) Report {
	if ready, missing := Context7Ready(s.RoundDir, s.SnapshotDir, def.Context7Packages); !ready {
		return s.writeReport(def.ID, Report{
			ValidatorID: def.ID,
			Verdict:     VerdictBlocked,
			Note:        fmt.Sprintf("missing context7 markers: %v", missing),
		})
	}

	report, err := s.runWithTimeout(ctx, def, def.Engine)
	if err != nil && def.FallbackEngine != "" {
		report, err = s.runWithTimeout(ctx, def, def.FallbackEngine)
	}
	if err != nil {
		if !def.Blocking {
			return s.writeReport(def.ID, Report{
				ValidatorID: def.ID,
				Verdict:     VerdictPending,
				Note:        fmt.Sprintf("engine unavailable, skipped (non-blocking): %v", err),
			})
		}
		s.Log.Errorw("validator run failed", "validator", def.ID, "error", err)
		return s.writeReport(def.ID, Report{
			ValidatorID: def.ID,
			Verdict:     VerdictBlocked,
			Note:        err.Error(),
		})
	}
	return report
}

func (s *Scheduler) runWithTimeout(ctx context.Context, def Definition, engine string) (Report, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	report, err := s.Run(runCtx, Definition{
		ID: def.ID, Engine: engine, PromptTemplate: def.PromptTemplate,
	}, s.RoundDir)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return s.writeReport(def.ID, Report{
			ValidatorID: def.ID,
			Verdict:     VerdictBlocked,
			Note:        fmt.Sprintf("timed out after %s", s.Timeout),
		}), nil
	}
	if err != nil {
		return Report{}, err
	}
	return s.writeReport(def.ID, report), nil
}

// delegate writes a delegation markdown for validators whose engine requires
// external orchestration and reports the validator as pending (spec.md
// §4.I step 3).
func (s *Scheduler) delegate(def Definition) Report {
	path := filepath.Join(s.RoundDir, fmt.Sprintf("delegation-%s.md", def.ID))
	body := fmt.Sprintf("# Delegated validator: %s\n\nEngine: %s\n\n%s\n", def.ID, def.Engine, def.PromptTemplate)
	if err := pathio.WriteAtomic(path, []byte(body), 0o644); err != nil {
		s.Log.Errorw("writing delegation file failed", "validator", def.ID, "error", err)
	}
	return s.writeReport(def.ID, Report{ValidatorID: def.ID, Verdict: VerdictPending, Note: "delegated; awaiting external report"})
}

func (s *Scheduler) writeReport(validatorID string, report Report) Report {
	report.ValidatorID = validatorID
	path := filepath.Join(s.RoundDir, validatorID+"-report.json")
	if err := pathio.SaveJSON(path, report); err != nil {
		s.Log.Errorw("writing validator report failed", "validator", validatorID, "error", err)
	}
	return report
}

// runEngineProcess is the default Scheduler.Run: it spawns the validator's
// engine binary as a child process (grounded on the corpus's
// os/exec.Command usage for subprocess orchestration — e.g.
// githubnext-gh-aw/pkg/cli's workflow-step execution and the evidence
// package's gitOutput) and reads back the JSON report the child is expected
// to have written.
func runEngineProcess(ctx context.Context, def Definition, roundDir string) (Report, error) {
	cmd := exec.CommandContext(ctx, def.Engine, "--round-dir", roundDir, "--validator", def.ID)
	if err := cmd.Run(); err != nil {
		return Report{}, fmt.Errorf("running validator engine %s: %w", def.Engine, err)
	}
	path := filepath.Join(roundDir, def.ID+"-report.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading report for %s: %w", def.ID, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("parsing report for %s: %w", def.ID, err)
	}
	return report, nil
}

// LoadWaveResults reconstructs each wave's WaveResult from the reports
// already written to roundDir, without re-running any validator. Used by
// callers (e.g. "qa promote") that run as a separate process from the one
// that executed the wave and only need the verdicts to compute bundle
// approval.
func LoadWaveResults(roundDir string, roster map[string][]Annotated, waveOrder []string) []WaveResult {
	var results []WaveResult
	for _, wave := range waveOrder {
		members := roster[wave]
		reports := map[string]Report{}
		verdict := VerdictApprove
		for _, m := range members {
			path := filepath.Join(roundDir, m.ID+"-report.json")
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var r Report
			if err := json.Unmarshal(data, &r); err != nil {
				continue
			}
			reports[m.ID] = r
			if m.Blocking && (r.Verdict == VerdictReject || r.Verdict == VerdictBlocked) {
				verdict = VerdictReject
			}
		}
		results = append(results, WaveResult{Wave: wave, Reports: reports, Verdict: verdict})
	}
	return results
}

// ComputeBundleApproval aggregates wave results into the bundle-approval
// marker (spec.md §4.I "Bundle approval", §4.H). taskID scopes the
// single-task case; for multi-task bundles callers call this once per task
// and merge the resulting TaskApproval entries themselves.
func ComputeBundleApproval(taskID string, round int, waves []WaveResult, roster map[string][]Annotated) evidence.TaskApproval {
	approved := true
	verdict := "approve"
	for _, w := range waves {
		for _, m := range roster[w.Wave] {
			r, ok := w.Reports[m.ID]
			if !ok {
				continue
			}
			if m.Blocking && r.Verdict != VerdictApprove {
				approved = false
				verdict = string(r.Verdict)
			}
		}
	}
	return evidence.TaskApproval{TaskID: taskID, Approved: approved, Verdict: verdict, Round: round}
}
