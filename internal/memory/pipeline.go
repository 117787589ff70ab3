package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/logging"
)

// Insight is the structured session summary session-insights-v1 extracts
// (spec.md §4.J "extract structured session summary from the session's
// tasks/QA").
type Insight struct {
	SessionID      string   `json:"sessionId"`
	TasksCompleted []string `json:"tasksCompleted"`
	TasksBlocked   []string `json:"tasksBlocked"`
	QAVerdicts     []string `json:"qaVerdicts"`
	Summary        string   `json:"summary"`
}

// Pipeline runs memory steps against a Registry. Every step is fail-open
// (spec.md §4.J "provider errors are logged and do not abort the caller"):
// Run never returns an error, it only logs one.
type Pipeline struct {
	Registry *Registry
	Log      *logging.Logger
}

// NewPipeline builds a Pipeline, defaulting to a no-op logger.
func NewPipeline(registry *Registry, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Noop()
	}
	return &Pipeline{Registry: registry, Log: log}
}

// Run executes steps in order against session/tasks/qas, swallowing every
// provider error (spec.md §4.J "fail-open"). Each step's arguments come from
// its own "name:key=value,..." suffix (e.g. "provider=file"); a step with no
// provider argument uses defaultProvider.
func (p *Pipeline) Run(ctx context.Context, steps []string, session *entity.Session, tasks []*entity.Task, qas []*entity.QA, defaultProvider string) {
	insight := BuildInsight(session, tasks, qas)

	for _, step := range steps {
		name, args := parseStep(step)
		switch name {
		case "session-insights-v1":
			// Already computed above; the step's presence in the list just
			// signals that downstream steps may reference its output.
		case "provider-save-structured":
			p.runSaveStructured(ctx, args, defaultProvider, insight)
		case "provider-index":
			p.runIndex(ctx, args, defaultProvider)
		default:
			p.Log.Warnw("unknown memory pipeline step, skipped", "step", name)
		}
	}
}

func (p *Pipeline) runSaveStructured(ctx context.Context, args map[string]string, defaultProvider string, insight Insight) {
	providerName := args["provider"]
	if providerName == "" {
		providerName = defaultProvider
	}
	provider, ok := p.Registry.Lookup(providerName)
	if !ok {
		p.Log.Warnw("memory step skipped: provider not registered", "step", "provider-save-structured", "provider", providerName)
		return
	}

	if saver, ok := provider.(StructuredSaver); ok {
		record := map[string]any{
			"sessionId":      insight.SessionID,
			"tasksCompleted": insight.TasksCompleted,
			"tasksBlocked":   insight.TasksBlocked,
			"qaVerdicts":     insight.QAVerdicts,
			"summary":        insight.Summary,
		}
		if err := saver.SaveStructured(ctx, "session-insight", record); err != nil {
			p.Log.Errorw("memory save failed, continuing (fail-open)", "provider", providerName, "error", err)
		}
		return
	}

	if err := provider.Save(ctx, "session-insight", insight.Summary); err != nil {
		p.Log.Errorw("memory save failed, continuing (fail-open)", "provider", providerName, "error", err)
	}
}

func (p *Pipeline) runIndex(ctx context.Context, args map[string]string, defaultProvider string) {
	providerName := args["provider"]
	if providerName == "" {
		providerName = defaultProvider
	}
	provider, ok := p.Registry.Lookup(providerName)
	if !ok {
		p.Log.Warnw("memory step skipped: provider not registered", "step", "provider-index", "provider", providerName)
		return
	}
	indexer, ok := provider.(Indexer)
	if !ok {
		return
	}
	if err := indexer.Index(ctx); err != nil {
		p.Log.Errorw("memory index failed, continuing (fail-open)", "provider", providerName, "error", err)
	}
}

// BuildInsight extracts the structured summary session-insights-v1 produces.
func BuildInsight(session *entity.Session, tasks []*entity.Task, qas []*entity.QA) Insight {
	insight := Insight{SessionID: session.ID}
	for _, t := range tasks {
		switch t.State {
		case entity.TaskDone, entity.TaskValidated:
			insight.TasksCompleted = append(insight.TasksCompleted, t.ID)
		case entity.TaskBlocked:
			insight.TasksBlocked = append(insight.TasksBlocked, t.ID)
		}
	}
	for _, q := range qas {
		if len(q.RoundHistory) == 0 {
			continue
		}
		last := q.RoundHistory[len(q.RoundHistory)-1]
		insight.QAVerdicts = append(insight.QAVerdicts, fmt.Sprintf("%s:%s", q.TaskID, last.Verdict))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s completed %d task(s), %d blocked.\n", session.ID, len(insight.TasksCompleted), len(insight.TasksBlocked))
	if len(insight.QAVerdicts) > 0 {
		fmt.Fprintf(&b, "QA verdicts: %s\n", strings.Join(insight.QAVerdicts, ", "))
	}
	insight.Summary = b.String()
	return insight
}

// parseStep splits a step name from its ":key=value,key2=value2" argument
// suffix (spec.md §4.J step arguments, e.g. "provider-save-structured(provider,
// inputVar)").
func parseStep(step string) (string, map[string]string) {
	name, rest, found := strings.Cut(step, ":")
	if !found {
		return step, nil
	}
	args := map[string]string{}
	for _, pair := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return name, args
}
