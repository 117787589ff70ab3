package workflow

import (
	"context"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/rules"
	"github.com/edisonhq/edison/internal/statemachine"
)

// NewSessionParams are the inputs to CreateSession.
type NewSessionParams struct {
	Owner  string
	Branch string
}

// CreateSession creates a Session in active (spec.md §3 "active (created)").
func (s *Service) CreateSession(ctx context.Context, p NewSessionParams) (*entity.Session, error) {
	now := s.Clock.Now()
	sess := &entity.Session{
		Metadata: entity.Metadata{CreatedAt: now, UpdatedAt: now, Owner: p.Owner},
		ID:       newID(0, 0, ""),
		State:    entity.SessionActive,
		Branch:   p.Branch,
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_save_failed", map[string]any{"id": sess.ID}, err)
	}
	return sess, nil
}

// NextRecommendations computes the session's recommendation plan (spec.md
// §4.F, §4.K "session.next"): it loads every owned task/QA, builds a
// rules.Candidate per entity against the matching state-machine spec, and
// delegates to the Planner.
func (s *Service) NextRecommendations(ctx context.Context, sessionID string, taskSpec, qaSpec *statemachine.Spec, policy string, limit int) (rules.Plan, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return rules.Plan{}, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return rules.Plan{}, notFound("session", sessionID)
	}

	var tasks []*entity.Task
	var candidates []rules.Candidate
	for _, taskID := range sess.TaskIDs {
		task, found, err := s.Tasks.Get(taskID)
		if err != nil || !found {
			continue
		}
		tasks = append(tasks, task)
		candidates = append(candidates, rules.Candidate{
			EntityKind: "task", EntityID: task.ID, State: task.State, Spec: taskSpec,
			Context: &handler.Context{Task: task, Session: sess, Config: s.Config},
		})
	}
	for _, qaID := range sess.QAIDs {
		qa, found, err := s.QAs.Get(qaID)
		if err != nil || !found {
			continue
		}
		candidates = append(candidates, rules.Candidate{
			EntityKind: "qa", EntityID: qa.ID, State: qa.State, Spec: qaSpec,
			Context: &handler.Context{QA: qa, Session: sess, Config: s.Config},
		})
	}

	isComplete, reasons := rules.EvaluateCompletion(policy, tasks)
	round := len(sess.Activity)
	plan := s.Planner.Plan(sess, candidates, policy, isComplete, reasons, round, limit)
	return plan, nil
}

// ownedTasks loads every task the session claims, skipping any that no
// longer resolve.
func (s *Service) ownedTasks(sess *entity.Session) []*entity.Task {
	var tasks []*entity.Task
	for _, id := range sess.TaskIDs {
		if t, found, _ := s.Tasks.Get(id); found {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// CloseSession transitions a Session from active to closing, and — if
// memory is configured — fires the event-driven memory pipeline over the
// session's owned tasks/QA (spec.md §4.J, §4.K "session.close").
func (s *Service) CloseSession(ctx context.Context, sessionID, reason string) (*entity.Session, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return nil, notFound("session", sessionID)
	}
	pendingCommits := 0
	for _, t := range s.ownedTasks(sess) {
		if t.State == entity.TaskWIP {
			pendingCommits++
		}
	}
	hctx := &handler.Context{
		Session: sess, Config: s.Config, Reason: reason,
		Extra: map[string]any{"sessionReady": pendingCommits == 0, "pendingCommits": pendingCommits},
	}
	updated, err := s.SessionEngine.Transition(ctx, sessionID, entity.SessionClosing, reason, hctx)
	if err != nil {
		return nil, err
	}

	if s.Memory != nil {
		mem, err := s.Config.Memory()
		if err == nil && mem.Enabled {
			tasks := s.ownedTasks(updated)
			var qas []*entity.QA
			for _, id := range updated.QAIDs {
				if q, found, _ := s.QAs.Get(id); found {
					qas = append(qas, q)
				}
			}
			defaultProvider := "file"
			if len(mem.Providers) > 0 {
				defaultProvider = mem.Providers[0]
			}
			s.Memory.Run(ctx, mem.Steps, updated, tasks, qas, defaultProvider)
		}
	}
	return updated, nil
}

// ValidateSession transitions a Session from closing to validated, gated on
// every owned task being validated (spec.md §3 Session lifecycle).
func (s *Service) ValidateSession(ctx context.Context, sessionID, reason string) (*entity.Session, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return nil, notFound("session", sessionID)
	}
	allValidated := true
	for _, t := range s.ownedTasks(sess) {
		if t.State != entity.TaskValidated {
			allValidated = false
			break
		}
	}
	hctx := &handler.Context{
		Session: sess, Config: s.Config, Reason: reason,
		Extra: map[string]any{"allTasksValidated": allValidated},
	}
	return s.SessionEngine.Transition(ctx, sessionID, entity.SessionValidated, reason, hctx)
}

// ArchiveSession transitions a Session from validated to archived, its
// terminal state.
func (s *Service) ArchiveSession(ctx context.Context, sessionID, reason string) (*entity.Session, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return nil, notFound("session", sessionID)
	}
	hctx := &handler.Context{Session: sess, Config: s.Config, Reason: reason}
	return s.SessionEngine.Transition(ctx, sessionID, entity.SessionArchived, reason, hctx)
}

// MarkSessionBlocked moves a Session from active or closing into recovery
// once blockerCount (interrupted worktree, abandoned claim, etc.) is
// nonzero (spec.md §3 "recovery is a side branch reachable from
// active/closing").
func (s *Service) MarkSessionBlocked(ctx context.Context, sessionID, reason string, blockerCount int) (*entity.Session, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return nil, notFound("session", sessionID)
	}
	hctx := &handler.Context{
		Session: sess, Config: s.Config, Reason: reason,
		Extra: map[string]any{"sessionBlockerCount": blockerCount},
	}
	return s.SessionEngine.Transition(ctx, sessionID, entity.SessionRecovery, reason, hctx)
}

// RecoverSession resumes a Session from recovery back to active (spec.md §3
// recovery side branch), rejecting a session that has no owner to resume as.
func (s *Service) RecoverSession(ctx context.Context, sessionID, reason string) (*entity.Session, error) {
	sess, found, err := s.Sessions.Get(sessionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "session_read_failed", map[string]any{"id": sessionID}, err)
	}
	if !found {
		return nil, notFound("session", sessionID)
	}
	hctx := &handler.Context{Session: sess, Config: s.Config, Reason: reason}
	return s.SessionEngine.Transition(ctx, sessionID, entity.SessionActive, reason, hctx)
}
