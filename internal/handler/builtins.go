package handler

import (
	"fmt"
	"os/exec"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/pathio"
)

// RegisterBuiltins installs the handlers spec.md §4.D requires every
// deployment to carry, at the bundled layer. clock supplies deterministic
// timestamps for the timestamp-recording actions.
func RegisterBuiltins(r *Registries, clock pathio.Clock) error {
	for name, g := range builtinGuards() {
		if err := r.RegisterGuard(LayerBundled, name, g); err != nil {
			return err
		}
	}
	for name, c := range builtinConditions() {
		if err := r.RegisterCondition(LayerBundled, name, c); err != nil {
			return err
		}
	}
	for name, a := range builtinActions(clock) {
		if err := r.RegisterAction(LayerBundled, name, a); err != nil {
			return err
		}
	}
	return nil
}

func builtinGuards() map[string]Guard {
	return map[string]Guard{
		"always_allow": func(ctx *Context) GuardResult { return Allow() },
		"fail_closed":  func(ctx *Context) GuardResult { return Block(HardBlock, "fail_closed: unconditional deny") },

		"can_start_task": func(ctx *Context) GuardResult {
			t, ok := ctx.RequireTask()
			if !ok {
				return Block(HardBlock, "can_start_task: no task in context")
			}
			missing := ctx.ExtraStrings("missingDependencies")
			if t.State != entity.TaskTodo {
				return Block(HardBlock, "can_start_task: task is not in todo")
			}
			if len(missing) > 0 {
				return Block(HardBlock, "can_start_task: unresolved dependencies")
			}
			return Allow()
		},
		"can_finish_task": func(ctx *Context) GuardResult {
			t, ok := ctx.RequireTask()
			if !ok || t.State != entity.TaskWIP {
				return Block(HardBlock, "can_finish_task: task is not in wip")
			}
			return Allow()
		},
		"has_blockers": func(ctx *Context) GuardResult {
			n, ok := ctx.ExtraInt("blockerCount")
			if !ok || n == 0 {
				return Block(HardBlock, "has_blockers: no blockers recorded")
			}
			return Allow()
		},
		// requires_rollback_reason is a SoftBlock: entering blocked without a
		// recorded reason is discouraged but can be forced (spec.md
		// SUPPLEMENTED FEATURES "force override").
		"requires_rollback_reason": func(ctx *Context) GuardResult {
			if ctx.Reason == "" {
				return Block(SoftBlock, "requires_rollback_reason: no reason given for entering blocked")
			}
			return Allow()
		},
		"can_activate_session": func(ctx *Context) GuardResult {
			s, ok := ctx.RequireSession()
			if !ok || !(s.State == entity.SessionActive || s.State == "") {
				return Block(HardBlock, "can_activate_session: session is not activatable")
			}
			return Allow()
		},
		"can_complete_session": func(ctx *Context) GuardResult {
			if _, ok := ctx.RequireSession(); !ok {
				return Block(HardBlock, "can_complete_session: no session in context")
			}
			if !ctx.ExtraBool("allTasksValidated") {
				return Block(HardBlock, "can_complete_session: not every owned task is validated")
			}
			return Allow()
		},
		"has_session_blockers": func(ctx *Context) GuardResult {
			n, ok := ctx.ExtraInt("sessionBlockerCount")
			if !ok || n == 0 {
				return Block(HardBlock, "has_session_blockers: no blockers recorded")
			}
			return Allow()
		},
		"is_session_ready": func(ctx *Context) GuardResult {
			if _, ok := ctx.RequireSession(); !ok {
				return Block(HardBlock, "is_session_ready: no session in context")
			}
			if !ctx.ExtraBool("sessionReady") {
				return Block(HardBlock, "is_session_ready: session has pending commits")
			}
			return Allow()
		},
		"can_start_qa": func(ctx *Context) GuardResult {
			q, ok := ctx.RequireQA()
			if !ok {
				return Block(HardBlock, "can_start_qa: no QA in context")
			}
			t, ok := ctx.RequireTask()
			if !ok {
				return Block(HardBlock, "can_start_qa: no task in context")
			}
			if t.State != entity.TaskDone || !(q.State == entity.QAWaiting || q.State == entity.QATodo) {
				return Block(HardBlock, "can_start_qa: paired task has not reached done")
			}
			return Allow()
		},
		"can_validate_qa": func(ctx *Context) GuardResult {
			if _, ok := ctx.RequireQA(); !ok {
				return Block(HardBlock, "can_validate_qa: no QA in context")
			}
			if !ctx.ExtraBool("allBlockingValidatorsPassed") {
				return Block(HardBlock, "can_validate_qa: blocking validators have not all passed")
			}
			return Allow()
		},
		"has_validator_reports": func(ctx *Context) GuardResult {
			n, ok := ctx.ExtraInt("validatorReportCount")
			if !ok || n == 0 {
				return Block(HardBlock, "has_validator_reports: no validator reports recorded")
			}
			return Allow()
		},
		"has_all_waves_passed": func(ctx *Context) GuardResult {
			if !ctx.ExtraBool("allWavesPassed") {
				return Block(HardBlock, "has_all_waves_passed: not every wave passed")
			}
			return Allow()
		},
		// has_bundle_approval is the sole gate for promoting to validated
		// (spec.md §4.I); it is HardBlock so Force can never substitute for
		// a real bundle-approval marker.
		"has_bundle_approval": func(ctx *Context) GuardResult {
			if !ctx.ExtraBool("bundleApproved") {
				return Block(HardBlock, "has_bundle_approval: bundle approval marker missing or rejected")
			}
			return Allow()
		},
	}
}

func builtinConditions() map[string]Condition {
	return map[string]Condition{
		"all_work_complete": func(ctx *Context) bool {
			return ctx.ExtraBool("allWorkComplete")
		},
		"no_pending_commits": func(ctx *Context) bool {
			n, ok := ctx.ExtraInt("pendingCommits")
			if !ok {
				return false
			}
			return n == 0
		},
		"ready_to_close": func(ctx *Context) bool {
			if _, ok := ctx.RequireSession(); !ok {
				return false
			}
			return ctx.ExtraBool("readyToClose")
		},
		"has_task": func(ctx *Context) bool {
			_, ok := ctx.RequireTask()
			return ok
		},
		"task_claimed": func(ctx *Context) bool {
			t, ok := ctx.RequireTask()
			if !ok {
				return false
			}
			return t.Metadata.Owner != ""
		},
		"task_ready_for_qa": func(ctx *Context) bool {
			t, ok := ctx.RequireTask()
			if !ok {
				return false
			}
			return t.State == entity.TaskDone
		},
		"validation_failed": func(ctx *Context) bool {
			if _, ok := ctx.RequireQA(); !ok {
				return false
			}
			return ctx.ExtraBool("validationFailed")
		},
		"dependencies_missing": func(ctx *Context) bool {
			return len(ctx.ExtraStrings("missingDependencies")) > 0
		},
		"has_blocker_reason": func(ctx *Context) bool {
			return ctx.Reason != ""
		},
		"blockers_resolved": func(ctx *Context) bool {
			return ctx.ExtraBool("blockersResolved")
		},
		"session_has_owner": func(ctx *Context) bool {
			s, ok := ctx.RequireSession()
			if !ok {
				return false
			}
			return s.Metadata.Owner != ""
		},
		"all_tasks_validated": func(ctx *Context) bool {
			return ctx.ExtraBool("allTasksValidated")
		},
		"has_required_evidence": func(ctx *Context) bool {
			return ctx.ExtraBool("hasRequiredEvidence")
		},
		"all_blocking_validators_passed": func(ctx *Context) bool {
			return ctx.ExtraBool("allBlockingValidatorsPassed")
		},
	}
}

func builtinActions(clock pathio.Clock) map[string]Action {
	return map[string]Action{
		"record_completion_time": func(ctx *Context) error {
			t, ok := ctx.RequireTask()
			if !ok {
				return nil
			}
			t.Metadata.UpdatedAt = clock.Now()
			return nil
		},
		"record_blocker_reason": func(ctx *Context) error {
			t, ok := ctx.RequireTask()
			if !ok {
				return nil
			}
			t.BlockerReason = ctx.Reason
			return nil
		},
		"record_closed": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok {
				return nil
			}
			s.Activity = append(s.Activity, entity.ActivityEntry{Timestamp: clock.Now(), Message: "session closed"})
			return nil
		},
		"log_transition": func(ctx *Context) error {
			// This handler emits nothing, and the state machine does not log
			// successful transitions either (it logs only post-commit action
			// failures); it exists so transition specs can name an explicit
			// audit point without coupling to a logger.
			return nil
		},
		"create_worktree": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok {
				return fmt.Errorf("create_worktree: no session in context")
			}
			if s.Worktree == "" {
				return fmt.Errorf("create_worktree: session has no worktree path configured")
			}
			cmd := exec.Command("git", "worktree", "add", s.Worktree, s.Branch)
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("git worktree add: %w (%s)", err, out)
			}
			return nil
		},
		"cleanup_worktree": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok || s.Worktree == "" {
				return nil
			}
			cmd := exec.Command("git", "worktree", "remove", "--force", s.Worktree)
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("git worktree remove: %w (%s)", err, out)
			}
			return nil
		},
		"record_activation_time": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok {
				return nil
			}
			s.Metadata.UpdatedAt = clock.Now()
			return nil
		},
		"notify_session_start": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok {
				return nil
			}
			s.Activity = append(s.Activity, entity.ActivityEntry{Timestamp: clock.Now(), Message: "session started"})
			return nil
		},
		"finalize_session": func(ctx *Context) error {
			s, ok := ctx.RequireSession()
			if !ok {
				return nil
			}
			s.Activity = append(s.Activity, entity.ActivityEntry{Timestamp: clock.Now(), Message: "session finalized"})
			return nil
		},
		"validate_prerequisites": func(ctx *Context) error {
			if len(ctx.ExtraStrings("missingDependencies")) > 0 {
				return fmt.Errorf("validate_prerequisites: unresolved dependencies: %v", ctx.ExtraStrings("missingDependencies"))
			}
			return nil
		},
	}
}
