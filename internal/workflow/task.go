package workflow

import (
	"context"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/evidence"
	"github.com/edisonhq/edison/internal/handler"
)

// NewTaskParams are the inputs to CreateTask.
type NewTaskParams struct {
	Priority  int
	Wave      int
	Slug      string
	Title     string
	Type      entity.TaskType
	Tags      []string
	DependsOn []string
	Parent    string
	SessionID string
}

// CreateTask creates a Task in todo and its paired QA in waiting (spec.md
// §3 "QA: waiting (created on task creation)"), rejecting a depends_on set
// that would introduce a cycle.
func (s *Service) CreateTask(ctx context.Context, p NewTaskParams) (*entity.Task, error) {
	id := newID(p.Priority, p.Wave, p.Slug)
	if err := s.checkAcyclic(id, p.DependsOn); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	task := &entity.Task{
		Metadata:  entity.Metadata{CreatedAt: now, UpdatedAt: now, SessionID: p.SessionID},
		ID:        id,
		Title:     p.Title,
		Type:      p.Type,
		State:     entity.TaskTodo,
		Tags:      p.Tags,
		DependsOn: p.DependsOn,
		Parent:    p.Parent,
		Priority:  p.Priority,
		Wave:      p.Wave,
	}
	if err := s.Tasks.Save(ctx, task); err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_save_failed", map[string]any{"id": id}, err)
	}

	qa := &entity.QA{
		Metadata: entity.Metadata{CreatedAt: now, UpdatedAt: now, SessionID: p.SessionID},
		ID:       entity.QAID(id),
		TaskID:   id,
		State:    entity.QAWaiting,
	}
	if err := s.QAs.Save(ctx, qa); err != nil {
		return nil, errs.Wrap(errs.KindIO, "qa_save_failed", map[string]any{"id": qa.ID}, err)
	}

	if task.SessionID != "" {
		s.appendSessionTask(ctx, task.SessionID, id, qa.ID)
	}
	return task, nil
}

// checkAcyclic rejects a depends_on set that would create a cycle reachable
// from id (spec.md §3 "depends_on induces a DAG; cycles are invalid").
func (s *Service) checkAcyclic(id string, dependsOn []string) error {
	visited := map[string]bool{id: true}
	var walk func(taskID string) error
	walk = func(taskID string) error {
		t, found, err := s.Tasks.Get(taskID)
		if err != nil || !found {
			return nil
		}
		for _, dep := range t.DependsOn {
			if visited[dep] {
				return errs.New(errs.KindInvariantViolation, "dependency_cycle", map[string]any{"id": id, "via": dep})
			}
			visited[dep] = true
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, dep := range dependsOn {
		if dep == id {
			return errs.New(errs.KindInvariantViolation, "dependency_cycle", map[string]any{"id": id, "via": dep})
		}
		visited[dep] = true
		if err := walk(dep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) appendSessionTask(ctx context.Context, sessionID, taskID, qaID string) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil || !found {
		return
	}
	sess.TaskIDs = append(sess.TaskIDs, taskID)
	sess.QAIDs = append(sess.QAIDs, qaID)
	sess.UpdatedAt = s.Clock.Now()
	if err := s.Sessions.Save(ctx, sess); err != nil {
		s.Log.Errorw("linking task to session failed", "session", sessionID, "task", taskID, "error", err)
	}
}

// ClaimTask transitions a Task from todo to wip (spec.md §3 "wip (on
// claim)"), associating it with the claiming session.
func (s *Service) ClaimTask(ctx context.Context, taskID, sessionID, reason string) (*entity.Task, error) {
	task, found, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	if !found {
		return nil, notFound("task", taskID)
	}
	var missing []string
	for _, dep := range task.DependsOn {
		depTask, found, err := s.Tasks.Get(dep)
		if err != nil || !found || depTask.State != entity.TaskValidated {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return nil, errs.New(errs.KindStateTransitionRejected, "dependency_blocked", map[string]any{"id": taskID, "missing": missing})
	}
	hctx := &handler.Context{
		Task: task, Config: s.Config, Reason: reason,
		Extra: map[string]any{"missingDependencies": missing},
	}
	updated, err := s.TaskEngine.Transition(ctx, taskID, entity.TaskWIP, reason, hctx)
	if err != nil {
		return nil, err
	}
	if sessionID != "" && updated.SessionID != sessionID {
		updated.SessionID = sessionID
		if err := s.Tasks.Save(ctx, updated); err != nil {
			return updated, errs.Wrap(errs.KindIO, "task_save_failed", map[string]any{"id": taskID}, err)
		}
		s.appendSessionTask(ctx, sessionID, taskID, entity.QAID(taskID))
	}
	return updated, nil
}

// ReadyTask transitions a Task from wip to done (spec.md "done (on
// ready)"), also advancing its paired QA from waiting/todo per the round
// rules once implementation evidence is in place.
func (s *Service) ReadyTask(ctx context.Context, taskID, roundDir, reason string) (*entity.Task, error) {
	task, found, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	if !found {
		return nil, notFound("task", taskID)
	}
	qaDomain, err := s.Config.QA()
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "qa_config", nil, err)
	}
	hasEvidence, missing := evidence.HasRequiredEvidence(roundDir, qaDomain.RequiredEvidence, "")
	if !hasEvidence {
		s.Log.Warnw("task ready blocked on missing evidence", "task", taskID, "missing", missing)
	}
	hctx := &handler.Context{
		Task: task, Config: s.Config, Reason: reason,
		Extra: map[string]any{"hasRequiredEvidence": hasEvidence},
	}
	updated, err := s.TaskEngine.Transition(ctx, taskID, entity.TaskDone, reason, hctx)
	if err != nil {
		return nil, err
	}

	qa, found, err := s.QAs.Get(entity.QAID(taskID))
	if err == nil && found && qa.State == entity.QAWaiting {
		qhctx := &handler.Context{QA: qa, Task: updated, Config: s.Config, Reason: "task_ready"}
		if _, qerr := s.QAEngine.Transition(ctx, qa.ID, entity.QATodo, "task_ready", qhctx); qerr != nil {
			s.Log.Warnw("qa auto-advance to todo failed", "qa", qa.ID, "error", qerr)
		}
	}
	return updated, nil
}

// PromoteTask transitions a Task from done to validated, gated on the
// round's bundle-approval marker (spec.md §4.I "Bundle approval ... is the
// sole gate for promoting ... Task to validated").
func (s *Service) PromoteTask(ctx context.Context, taskID, roundDir, reason string) (*entity.Task, error) {
	if err := requireBundleApproval(roundDir, taskID); err != nil {
		return nil, err
	}
	task, found, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	if !found {
		return nil, notFound("task", taskID)
	}
	hctx := &handler.Context{
		Task: task, Config: s.Config, Reason: reason,
		Extra: map[string]any{"bundleApproved": true},
	}
	return s.TaskEngine.Transition(ctx, taskID, entity.TaskValidated, reason, hctx)
}

// BlockTask transitions a Task into blocked from todo or wip, recording why
// (spec.md §3 "blocked is a side branch reachable from todo/wip"). A blank
// blockerReason soft-blocks the transition (requires_rollback_reason);
// force overrides it (spec.md SUPPLEMENTED FEATURES "force override").
func (s *Service) BlockTask(ctx context.Context, taskID, blockerReason string, force bool) (*entity.Task, error) {
	task, found, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	if !found {
		return nil, notFound("task", taskID)
	}
	hctx := &handler.Context{Task: task, Config: s.Config, Reason: blockerReason, Force: force}
	return s.TaskEngine.Transition(ctx, taskID, entity.TaskBlocked, blockerReason, hctx)
}

// UnblockTask exits a Task out of blocked back to either todo or wip (spec.md
// §3 "blocked ... exits back to them"), clearing the recorded blocker reason.
func (s *Service) UnblockTask(ctx context.Context, taskID, to, reason string) (*entity.Task, error) {
	task, found, err := s.Tasks.Get(taskID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "task_read_failed", map[string]any{"id": taskID}, err)
	}
	if !found {
		return nil, notFound("task", taskID)
	}
	hctx := &handler.Context{
		Task: task, Config: s.Config, Reason: reason,
		Extra: map[string]any{"blockersResolved": true},
	}
	updated, err := s.TaskEngine.Transition(ctx, taskID, to, reason, hctx)
	if err != nil {
		return nil, err
	}
	updated.BlockerReason = ""
	if err := s.Tasks.Save(ctx, updated); err != nil {
		return updated, errs.Wrap(errs.KindIO, "task_save_failed", map[string]any{"id": taskID}, err)
	}
	return updated, nil
}
