package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/evidence"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/pathio"
	"github.com/edisonhq/edison/internal/validator"
)

func secondsToDuration(n int) time.Duration { return time.Duration(n) * time.Second }

// ValidateQA transitions a QA from todo to wip and runs the validator
// roster against the task's round directory (spec.md §4.I, §4.E "wip (on
// validators launched)"). It returns the per-wave results so the caller can
// render them; the QA itself advances to done once every wave has reported.
func (s *Service) ValidateQA(ctx context.Context, taskID string, round int, definitions []validator.Definition, changedFiles []string, explicit map[string]string) (*entity.QA, []validator.WaveResult, error) {
	qa, found, err := s.QAs.Get(entity.QAID(taskID))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, "qa_read_failed", map[string]any{"id": entity.QAID(taskID)}, err)
	}
	if !found {
		return nil, nil, notFound("qa", entity.QAID(taskID))
	}

	task, _, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	hctx := &handler.Context{QA: qa, Task: task, Config: s.Config, Reason: "validators_launched"}
	qa, err = s.QAEngine.Transition(ctx, qa.ID, entity.QAWIP, "validators_launched", hctx)
	if err != nil {
		return nil, nil, err
	}

	orch, err := s.Config.Orchestration()
	if err != nil {
		return qa, nil, errs.Wrap(errs.KindConfiguration, "orchestration_config", nil, err)
	}

	roundDir := evidence.Round{EvidenceRoot: s.EvidenceRoot, TaskID: taskID, Number: round}.Dir()
	roster := validator.AssembleRoster(definitions, changedFiles, explicit, orch.Waves)
	if len(roster) == 0 && orch.EmptyRosterPolicy == "strict" {
		return qa, nil, errs.New(errs.KindEvidenceMissing, "empty_roster", map[string]any{"task": taskID})
	}
	waveOrder := validator.OrderedWaves(roster, orch.Waves)

	specs := map[string]validator.WaveSpec{}
	for _, w := range waveOrder {
		specs[w] = validator.WaveSpec{Name: w, ContinueOnFail: true}
	}

	sched := validator.NewScheduler(roundDir, "", orch.Concurrency, secondsToDuration(orch.TimeoutSeconds), s.Log)
	results := sched.RunWaves(ctx, roster, waveOrder, specs)

	qa, err = s.advanceQAAfterWaves(ctx, qa, round, results)
	if err != nil {
		return qa, results, err
	}
	return qa, results, nil
}

func (s *Service) advanceQAAfterWaves(ctx context.Context, qa *entity.QA, round int, waves []validator.WaveResult) (*entity.QA, error) {
	reportCount := 0
	for _, w := range waves {
		reportCount += len(w.Reports)
	}
	hctx := &handler.Context{
		QA: qa, Config: s.Config, Reason: "waves_complete",
		Extra: map[string]any{"validatorReportCount": reportCount},
	}
	updated, err := s.QAEngine.Transition(ctx, qa.ID, entity.QADone, "waves_complete", hctx)
	if err != nil {
		return qa, err
	}
	updated.Round = round
	if err := s.QAs.Save(ctx, updated); err != nil {
		return updated, errs.Wrap(errs.KindIO, "qa_save_failed", map[string]any{"id": updated.ID}, err)
	}
	return updated, nil
}

// PromoteQA computes the bundle approval for taskID's round, writes the
// marker, and — if approved — advances QA from done to validated (spec.md
// §4.I "Bundle approval").
func (s *Service) PromoteQA(ctx context.Context, taskID string, round int, roster map[string][]validator.Annotated, waves []validator.WaveResult) (*entity.QA, error) {
	qa, found, err := s.QAs.Get(entity.QAID(taskID))
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "qa_read_failed", map[string]any{"id": entity.QAID(taskID)}, err)
	}
	if !found {
		return nil, notFound("qa", entity.QAID(taskID))
	}

	roundDir := evidence.Round{EvidenceRoot: s.EvidenceRoot, TaskID: taskID, Number: round}.Dir()
	approval := validator.ComputeBundleApproval(taskID, round, waves, roster)
	manifest := evidence.BundleApproval{
		Approved:    approval.Approved,
		Tasks:       []evidence.TaskApproval{approval},
		GeneratedAt: pathio.FormatUTC(s.Clock.Now()),
		Manifest:    fmt.Sprintf("round-%d", round),
	}
	if _, already, _ := evidence.ReadBundleApproval(roundDir); !already {
		if err := evidence.WriteBundleApproval(roundDir, manifest); err != nil {
			return nil, errs.Wrap(errs.KindIO, "bundle_approval_write_failed", map[string]any{"task": taskID}, err)
		}
	}
	if !approval.Approved {
		return nil, errs.New(errs.KindBundleApprovalMissing, "not_approved", map[string]any{"task": taskID, "round": round})
	}

	hctx := &handler.Context{
		QA: qa, Config: s.Config, Reason: "bundle_approved",
		Extra: map[string]any{"allBlockingValidatorsPassed": approval.Approved},
	}
	return s.QAEngine.Transition(ctx, qa.ID, entity.QAValidated, "bundle_approved", hctx)
}

// RejectQA starts a new round after a reject verdict (spec.md §3 "done→wip
// on rejection with incremented round"; §4.I "Rejection starts a new round
// under a new directory").
func (s *Service) RejectQA(ctx context.Context, taskID string) (*entity.QA, int, error) {
	qa, found, err := s.QAs.Get(entity.QAID(taskID))
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindIO, "qa_read_failed", map[string]any{"id": entity.QAID(taskID)}, err)
	}
	if !found {
		return nil, 0, notFound("qa", entity.QAID(taskID))
	}

	qaDomain, err := s.Config.QA()
	if err != nil {
		return nil, 0, errs.Wrap(errs.KindConfiguration, "qa_config", nil, err)
	}
	next := evidence.NextRoundNumber(s.EvidenceRoot, taskID)
	if next > qaDomain.MaxRounds {
		return nil, next, errs.New(errs.KindStateTransitionRejected, "max_rounds_exceeded", map[string]any{"task": taskID, "round": next, "maxRounds": qaDomain.MaxRounds})
	}

	round := evidence.Round{EvidenceRoot: s.EvidenceRoot, TaskID: taskID, Number: next}
	if err := round.Prepare(); err != nil {
		return nil, next, errs.Wrap(errs.KindIO, "round_prepare_failed", map[string]any{"task": taskID, "round": next}, err)
	}

	hctx := &handler.Context{
		QA: qa, Config: s.Config, Reason: "rejected",
		Extra: map[string]any{"validationFailed": true},
	}
	updated, err := s.QAEngine.Transition(ctx, qa.ID, entity.QAWIP, "rejected", hctx)
	if err != nil {
		return nil, next, err
	}
	updated.Round = next
	updated.RoundDir = round.Dir()
	if err := s.QAs.Save(ctx, updated); err != nil {
		return updated, next, errs.Wrap(errs.KindIO, "qa_save_failed", map[string]any{"id": updated.ID}, err)
	}
	return updated, next, nil
}
