// Package workflow is Edison's public facade (spec.md §4.K): it composes
// the entity repositories, the state-machine engines, the rules planner,
// the validator scheduler, and the memory pipeline into the verbs
// external callers (the CLI, or an embedding host) actually invoke, and
// maps every internal failure onto the closed errs.Kind taxonomy so no
// caller needs to know which component produced it. It is the Go-native
// counterpart of the teacher's internal/mcp tool layer (registry.go) — a
// thin dispatch surface in front of the domain logic — generalized from
// MCP-tool-shaped calls into plain Go methods.
package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/edisonhq/edison/internal/config"
	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/errs"
	"github.com/edisonhq/edison/internal/evidence"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/logging"
	"github.com/edisonhq/edison/internal/memory"
	"github.com/edisonhq/edison/internal/pathio"
	"github.com/edisonhq/edison/internal/rules"
	"github.com/edisonhq/edison/internal/statemachine"
)

// Service is the facade's single entry point. Construct one per process
// (spec.md §5 "Each CLI invocation is a short-lived process").
type Service struct {
	Config *config.Config

	Tasks    *entity.Repository[*entity.Task]
	QAs      *entity.Repository[*entity.QA]
	Sessions *entity.Repository[*entity.Session]

	TaskEngine    *statemachine.Engine[*entity.Task]
	QAEngine      *statemachine.Engine[*entity.QA]
	SessionEngine *statemachine.Engine[*entity.Session]

	Registries *handler.Registries
	Planner    *rules.Planner
	Memory     *memory.Pipeline

	EvidenceRoot string
	Clock        pathio.Clock
	Log          *logging.Logger
}

// New wires a Service from its already-loaded dependencies. Callers (the
// CLI's bootstrap) are responsible for building each engine with the
// correct statemachine.Spec, since the task/QA/session specs differ.
func New(cfg *config.Config, taskRepo *entity.Repository[*entity.Task], qaRepo *entity.Repository[*entity.QA], sessionRepo *entity.Repository[*entity.Session], taskEngine *statemachine.Engine[*entity.Task], qaEngine *statemachine.Engine[*entity.QA], sessionEngine *statemachine.Engine[*entity.Session], registries *handler.Registries, mem *memory.Pipeline, evidenceRoot string, clock pathio.Clock, log *logging.Logger) *Service {
	if clock == nil {
		clock = pathio.SystemClock{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Service{
		Config:        cfg,
		Tasks:         taskRepo,
		QAs:           qaRepo,
		Sessions:      sessionRepo,
		TaskEngine:    taskEngine,
		QAEngine:      qaEngine,
		SessionEngine: sessionEngine,
		Registries:    registries,
		Planner:       &rules.Planner{Registries: registries},
		Memory:        mem,
		EvidenceRoot:  evidenceRoot,
		Clock:         clock,
		Log:           log,
	}
}

// newID builds a slug-qualified entity identifier: priority slot and
// optional wave prefix, then the caller-supplied slug (spec.md §3 "stable
// identifier (priority slot + optional wave + slug)").
func newID(priority, wave int, slug string) string {
	if slug == "" {
		slug = uuid.New().String()[:8]
	}
	if wave > 0 {
		return fmt.Sprintf("p%d-w%d-%s", priority, wave, slug)
	}
	return fmt.Sprintf("p%d-%s", priority, slug)
}

func notFound(kind, id string) error {
	return errs.New(errs.KindStateTransitionRejected, "not_found", map[string]any{"kind": kind, "id": id})
}

// requireBundleApproval reads the round's bundle approval marker, mapping
// absence/rejection onto errs.KindBundleApprovalMissing (spec.md §7).
func requireBundleApproval(roundDir, id string) error {
	approved, err := evidence.IsApproved(roundDir, id)
	if err != nil {
		return errs.Wrap(errs.KindIO, "bundle_approval_read_failed", map[string]any{"id": id, "round_dir": roundDir}, err)
	}
	if !approved {
		return errs.New(errs.KindBundleApprovalMissing, "not_approved", map[string]any{"id": id, "round_dir": roundDir})
	}
	return nil
}
