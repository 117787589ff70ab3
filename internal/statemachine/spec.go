// Package statemachine drives entity transitions against a declarative
// per-domain specification (spec.md §4.E). It is grounded on the teacher's
// guard/runner split (internal/guards/guards.go Runner.Run) generalized from
// a single fixed GuardSet into a state-keyed table of transitions loaded
// from YAML, each gated by a handler.Registries lookup instead of a
// hardcoded slice of Guard values.
package statemachine

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Spec is one domain's (task, qa, or session) transition specification
// (spec.md §4.E "Specification shape").
type Spec struct {
	States map[string]StateSpec `yaml:"states"`
}

// StateSpec describes one state node and the transitions allowed out of it.
type StateSpec struct {
	Initial            bool             `yaml:"initial,omitempty"`
	Final              bool             `yaml:"final,omitempty"`
	Description        string           `yaml:"description,omitempty"`
	AllowedTransitions []TransitionSpec `yaml:"allowed_transitions,omitempty"`
}

// TransitionSpec is one allowed_transitions entry.
type TransitionSpec struct {
	To              string               `yaml:"to"`
	Guard           string               `yaml:"guard,omitempty"`
	Conditions      []ConditionSpec      `yaml:"conditions,omitempty"`
	Actions         []ActionSpec         `yaml:"actions,omitempty"`
	Rules           []string             `yaml:"rules,omitempty"`
	Recommendations []RecommendationSpec `yaml:"recommendations,omitempty"`
}

// ConditionSpec names a condition, optionally with OR-composed alternatives.
type ConditionSpec struct {
	Name  string         `yaml:"name"`
	Or    []ConditionRef `yaml:"or,omitempty"`
	Error string         `yaml:"error,omitempty"`
}

// ConditionRef is one OR-alternative.
type ConditionRef struct {
	Name string `yaml:"name"`
}

// ActionSpec names an action and its timing.
type ActionSpec struct {
	Name string `yaml:"name"`
	When string `yaml:"when,omitempty"` // before | after (default) | config.<path>
}

// RecommendationSpec is surfaced by the recommendation planner (§4.F).
type RecommendationSpec struct {
	ID          string   `yaml:"id"`
	Entity      string   `yaml:"entity"`
	Rationale   string   `yaml:"rationale,omitempty"`
	Blocking    bool     `yaml:"blocking,omitempty"`
	CmdTemplate []string `yaml:"cmd_template,omitempty"`
}

// LoadSpec parses a transition specification document from path.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading state machine spec %s: %w", path, err)
	}
	return LoadSpecBytes(data)
}

// LoadSpecBytes parses a transition specification document already in
// memory, for callers sourcing it from an embed.FS (the bundled defaults)
// rather than the filesystem.
func LoadSpecBytes(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing state machine spec: %w", err)
	}
	return &s, nil
}

// FindTransition returns the allowed_transitions entry from currentState to
// toState, and whether currentState is even a known state.
func (s *Spec) FindTransition(currentState, toState string) (TransitionSpec, bool, bool) {
	state, knownState := s.States[currentState]
	if !knownState {
		return TransitionSpec{}, false, false
	}
	for _, t := range state.AllowedTransitions {
		if t.To == toState {
			return t, true, true
		}
	}
	return TransitionSpec{}, false, true
}

// InitialState returns the name of the state marked initial: true, or ""
// if none is.
func (s *Spec) InitialState() string {
	for name, st := range s.States {
		if st.Initial {
			return name
		}
	}
	return ""
}

// IsFinal reports whether state is marked final: true.
func (s *Spec) IsFinal(state string) bool {
	st, ok := s.States[state]
	return ok && st.Final
}
