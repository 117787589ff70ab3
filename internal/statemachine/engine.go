package statemachine

import (
	"context"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/logging"
	"github.com/edisonhq/edison/internal/pathio"
)

// Engine drives transitions for one entity kind against its Spec, using a
// shared handler.Registries and entity.Repository (spec.md §4.E).
type Engine[T entity.Record] struct {
	Spec       *Spec
	Repo       *entity.Repository[T]
	Registries *handler.Registries
	Clock      pathio.Clock
	Log        *logging.Logger
}

// Transition runs the full algorithm from spec.md §4.E steps 1–8 against
// the entity identified by id, driving it toward toState. hctx carries the
// domain context (task/qa/session pointers, config) guards/conditions/
// actions consult; Transition sets hctx.ToState and hctx.Reason itself, and
// points hctx's Task, QA or Session field (whichever matches T) at the record
// it loaded, so changes made by before-actions are committed with it.
func (e *Engine[T]) Transition(ctx context.Context, id, toState, reason string, hctx *handler.Context) (T, error) {
	var zero T

	rec, found, err := e.Repo.Get(id)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, errs.New(errs.KindStateTransitionRejected, "not_found", map[string]any{"id": id})
	}
	fromState := rec.RecordState()

	transition, hasTransition, knownState := e.Spec.FindTransition(fromState, toState)
	if !knownState {
		return zero, errs.New(errs.KindStateTransitionRejected, "unknown_state", map[string]any{
			"id": id, "state": fromState,
		})
	}
	if !hasTransition {
		return zero, errs.New(errs.KindStateTransitionRejected, "invalid_transition", map[string]any{
			"id": id, "from": fromState, "to": toState,
		})
	}

	hctx.ToState = toState
	hctx.Reason = reason
	switch v := any(rec).(type) {
	case *entity.Task:
		hctx.Task = v
	case *entity.QA:
		hctx.QA = v
	case *entity.Session:
		hctx.Session = v
	}

	for _, a := range transition.Actions {
		if a.When != string(handler.TimingBefore) {
			continue
		}
		action, err := e.Registries.Action(a.Name)
		if err != nil {
			return zero, errs.Wrap(errs.KindHandlerUnresolved, "before_action", map[string]any{"name": a.Name}, err)
		}
		if err := action(hctx); err != nil {
			return zero, errs.Wrap(errs.KindStateTransitionRejected, "before_action_failed", map[string]any{
				"id": id, "action": a.Name,
			}, err)
		}
	}

	if transition.Guard != "" {
		guard, err := e.Registries.Guard(transition.Guard)
		if err != nil {
			return zero, errs.Wrap(errs.KindHandlerUnresolved, "guard", map[string]any{"name": transition.Guard}, err)
		}
		result := guard(hctx)
		if result.Blocking(hctx.Force) {
			return zero, errs.New(errs.KindStateTransitionRejected, "guard_failed", map[string]any{
				"id": id, "guard": transition.Guard, "severity": result.Severity.String(), "message": result.Message,
			})
		}
	}

	for _, c := range transition.Conditions {
		if err := e.evalCondition(c, hctx); err != nil {
			return zero, errs.Wrap(errs.KindStateTransitionRejected, "condition_failed", map[string]any{
				"id": id, "condition": c.Name,
			}, err)
		}
	}

	rec.SetRecordState(toState)
	rec.AppendHistory(entity.HistoryEntry{
		FromState: fromState,
		ToState:   toState,
		Timestamp: e.Clock.Now(),
		Reason:    reason,
		Rules:     transition.Rules,
	})

	if err := e.Repo.MoveAndSave(ctx, id, fromState, rec); err != nil {
		return zero, err
	}

	for _, a := range transition.Actions {
		if a.When == string(handler.TimingBefore) {
			continue
		}
		if path, isConfigGated := handler.IsConfigTiming(a.When); isConfigGated {
			if hctx.Config == nil || !hctx.Config.PathTruthy(path) {
				continue
			}
		}
		action, err := e.Registries.Action(a.Name)
		if err != nil {
			if e.Log != nil {
				e.Log.Errorw("post-commit action unresolved", "id", id, "action", a.Name, "error", err)
			}
			continue
		}
		if err := action(hctx); err != nil && e.Log != nil {
			// spec.md §4.E: action failure post-commit is logged, non-fatal;
			// the transition already stands.
			e.Log.Errorw("post-commit action failed", "id", id, "action", a.Name, "error", err)
		}
	}

	return rec, nil
}

// evalCondition passes if c.Name passes, or any of c.Or's alternatives
// passes (spec.md §4.E step 5). An unresolved handler name is fatal.
func (e *Engine[T]) evalCondition(c ConditionSpec, hctx *handler.Context) error {
	names := append([]string{c.Name}, conditionRefNames(c.Or)...)
	var lastErr error
	for _, name := range names {
		cond, err := e.Registries.Condition(name)
		if err != nil {
			return err
		}
		if cond(hctx) {
			return nil
		}
		lastErr = conditionFailure(c, name)
	}
	return lastErr
}

func conditionRefNames(refs []ConditionRef) []string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.Name
	}
	return names
}

func conditionFailure(c ConditionSpec, lastTried string) error {
	if c.Error != "" {
		return &conditionError{message: c.Error}
	}
	return &conditionError{message: "condition " + lastTried + " did not pass"}
}

type conditionError struct{ message string }

func (e *conditionError) Error() string { return e.message }
