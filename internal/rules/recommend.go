// Package rules implements the recommendation planner (spec.md §4.F): given
// a session, it walks every owned Task/QA through the state-machine specs
// and surfaces the next actionable recommendations, aggregated blockers, and
// a completion verdict. It is grounded on the teacher's Outcome aggregation
// (internal/guards/guards.go Outcome.HardBlocks/SoftBlocks/FormatBlockMessage)
// generalized from a single guard-run's pass/fail list into a cross-entity
// plan covering every candidate transition of every owned entity.
package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/statemachine"
)

// Action is one surfaced recommendation (spec.md §4.F return shape "actions").
type Action struct {
	ID        string
	Entity    string
	EntityID  string
	Rationale string
	Blocking  bool
	Cmd       []string
}

// Blocker explains why a promote-forward recommendation is unavailable.
type Blocker struct {
	Entity string
	ID     string
	Reason string
}

// ReasonIncomplete is one reason completion has not been reached.
type ReasonIncomplete struct {
	Code    string
	Message string
	TaskIDs []string
}

// Completion reports the session-completion verdict.
type Completion struct {
	Policy            string
	IsComplete        bool
	ReasonsIncomplete []ReasonIncomplete
}

// Plan is the full recommendation-planner output (spec.md §4.F "Return shape").
type Plan struct {
	SessionID  string
	Completion Completion
	Actions    []Action
	Blockers   []Blocker
	Rules      []string
}

// Candidate is one entity under consideration: its kind, ID, current spec,
// and a pre-built handler.Context for guard/condition evaluation.
type Candidate struct {
	EntityKind string // "task" | "qa"
	EntityID   string
	State      string
	Spec       *statemachine.Spec
	Context    *handler.Context
}

// Planner computes recommendation plans for a session given its candidate
// entities and the handler registries shared with the state machine.
type Planner struct {
	Registries *handler.Registries
}

// renderTemplate substitutes {task_id}, {session_id}, {round} placeholders
// in a cmd_template (spec.md §4.F step 3).
func renderTemplate(tmpl []string, sessionID, taskID string, round int) []string {
	replacer := strings.NewReplacer(
		"{session_id}", sessionID,
		"{task_id}", taskID,
		"{round}", strconv.Itoa(round),
	)
	out := make([]string, len(tmpl))
	for i, arg := range tmpl {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// Plan computes the recommendation plan for a session (spec.md §4.F steps
// 1-6). limit caps the number of returned actions (0 = no cap).
func (p *Planner) Plan(session *entity.Session, candidates []Candidate, policy string, isComplete bool, reasonsIncomplete []ReasonIncomplete, round int, limit int) Plan {
	var actions []Action
	var blockers []Blocker
	ruleSet := map[string]bool{}

	for _, c := range candidates {
		state, ok := c.Spec.States[c.State]
		if !ok {
			continue
		}
		anyPromoted := false
		for _, t := range state.AllowedTransitions {
			guardOK := true
			var guardMessage string
			if t.Guard != "" {
				guard, err := p.Registries.Guard(t.Guard)
				if err != nil {
					guardOK = false
				} else if result := guard(c.Context); result.Blocking(c.Context.Force) {
					guardOK = false
					guardMessage = result.Message
				}
			}
			for _, r := range t.Rules {
				ruleSet[r] = true
			}
			if !guardOK {
				reason := "guard " + t.Guard + " did not pass for transition to " + t.To
				if guardMessage != "" {
					reason = guardMessage
				}
				blockers = append(blockers, Blocker{
					Entity: c.EntityKind, ID: c.EntityID,
					Reason: reason,
				})
				continue
			}
			anyPromoted = true
			for _, rec := range t.Recommendations {
				actions = append(actions, Action{
					ID:        rec.ID,
					Entity:    rec.Entity,
					EntityID:  c.EntityID,
					Rationale: rec.Rationale,
					Blocking:  rec.Blocking,
					Cmd:       renderTemplate(rec.CmdTemplate, session.ID, c.EntityID, round),
				})
			}
		}
		if !anyPromoted && len(state.AllowedTransitions) > 0 {
			blockers = append(blockers, Blocker{
				Entity: c.EntityKind, ID: c.EntityID,
				Reason: "no available promote-forward transition from " + c.State,
			})
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Blocking != actions[j].Blocking {
			return actions[i].Blocking
		}
		return false
	})
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}

	rules := make([]string, 0, len(ruleSet))
	for r := range ruleSet {
		rules = append(rules, r)
	}
	sort.Strings(rules)

	return Plan{
		SessionID: session.ID,
		Completion: Completion{
			Policy:            policy,
			IsComplete:        isComplete,
			ReasonsIncomplete: reasonsIncomplete,
		},
		Actions:  actions,
		Blockers: blockers,
		Rules:    rules,
	}
}
