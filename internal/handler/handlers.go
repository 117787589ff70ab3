package handler

import "fmt"

// Severity ranks how a failing GuardResult affects a transition, adopted
// from the teacher's guards.Severity (internal/guards/guards.go).
type Severity int

const (
	// Suggestion is advisory — the transition proceeds. The recommendation
	// planner (spec.md §4.F) does not surface its message.
	Suggestion Severity = iota
	// Warning is advisory — the transition proceeds.
	Warning
	// SoftBlock rejects the transition unless Context.Force is set.
	SoftBlock
	// HardBlock rejects the transition unconditionally; Force cannot
	// override it (spec.md §4.D "MUST follow fail-closed semantics").
	HardBlock
)

func (s Severity) String() string {
	switch s {
	case Suggestion:
		return "SUGGESTION"
	case Warning:
		return "WARNING"
	case SoftBlock:
		return "SOFT_BLOCK"
	case HardBlock:
		return "HARD_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// GuardResult is a guard's verdict. Pass true means the guard raised no
// issue; Severity and Message are only meaningful when Pass is false.
type GuardResult struct {
	Pass     bool
	Severity Severity
	Message  string
}

// Allow returns a passing GuardResult.
func Allow() GuardResult { return GuardResult{Pass: true} }

// Block returns a failing GuardResult at the given severity.
func Block(sev Severity, message string) GuardResult {
	return GuardResult{Severity: sev, Message: message}
}

// Blocking collapses a GuardResult to the plain bool the transition
// algorithm acts on (spec.md §4.E step 4 "Evaluate the guard; on false →
// reject"): HardBlock always rejects, SoftBlock rejects unless force is
// set, Warning/Suggestion never reject.
func (r GuardResult) Blocking(force bool) bool {
	if r.Pass {
		return false
	}
	switch r.Severity {
	case HardBlock:
		return true
	case SoftBlock:
		return !force
	default:
		return false
	}
}

// Guard is a single transition gate returning a severity-bearing result
// instead of a bare bool (spec.md SUPPLEMENTED FEATURES "Guard severities"),
// generalized from the teacher's guards.Guard.Check. MUST be fail-closed:
// return a Block result rather than panic or guess when ctx is missing a
// required field (spec.md §4.D, §8 "Guard determinism").
type Guard func(ctx *Context) GuardResult

// Condition is a declarative boolean prerequisite; composition with OR is
// expressed by the state-machine spec, not here (spec.md §4.D).
type Condition func(ctx *Context) bool

// ActionTiming controls when an Action runs relative to guard evaluation and
// the persisted state change (spec.md §4.D "Declared with a `when` timing").
type ActionTiming string

const (
	TimingBefore ActionTiming = "before"
	TimingAfter  ActionTiming = "after" // default
)

// IsConfigTiming reports whether timing is a `config.<path>` gate, and
// returns the path if so.
func IsConfigTiming(timing string) (path string, ok bool) {
	const prefix = "config."
	if len(timing) > len(prefix) && timing[:len(prefix)] == prefix {
		return timing[len(prefix):], true
	}
	return "", false
}

// Action may mutate ctx's mutable fields as a transition side effect
// (spec.md §4.D). Returning an error marks the action failed; per spec.md
// §4.E this is logged and non-fatal for post-commit actions, but a `before`
// action's error rejects the transition before the guard is evaluated.
// Changes a `before` action makes to the entity under transition are
// committed with it; changes made by post-commit actions are not saved.
type Action func(ctx *Context) error

// Registries bundles the three handler tables the state-machine engine
// consults (spec.md §4.D). Build one with NewRegistries and load layers in
// order with RegisterGuard/RegisterCondition/RegisterAction.
type Registries struct {
	guards     *registry[Guard]
	conditions *registry[Condition]
	actions    *registry[Action]
}

// NewRegistries returns empty registries with the required built-ins not yet
// loaded; call RegisterBuiltins to populate the bundled layer.
func NewRegistries() *Registries {
	return &Registries{
		guards:     newRegistry[Guard]("guard"),
		conditions: newRegistry[Condition]("condition"),
		actions:    newRegistry[Action]("action"),
	}
}

func (r *Registries) RegisterGuard(layer Layer, name string, g Guard) error {
	return r.guards.register(layer, name, g)
}

func (r *Registries) RegisterCondition(layer Layer, name string, c Condition) error {
	return r.conditions.register(layer, name, c)
}

func (r *Registries) RegisterAction(layer Layer, name string, a Action) error {
	return r.actions.register(layer, name, a)
}

// Guard resolves a guard by name, or an error if unregistered — a fatal
// configuration error at the call site (spec.md §4.E "Handler name
// unresolved: fatal configuration error at startup").
func (r *Registries) Guard(name string) (Guard, error) {
	g, ok := r.guards.lookup(name)
	if !ok {
		return nil, fmt.Errorf("unresolved guard handler: %q", name)
	}
	return g, nil
}

func (r *Registries) Condition(name string) (Condition, error) {
	c, ok := r.conditions.lookup(name)
	if !ok {
		return nil, fmt.Errorf("unresolved condition handler: %q", name)
	}
	return c, nil
}

func (r *Registries) Action(name string) (Action, error) {
	a, ok := r.actions.lookup(name)
	if !ok {
		return nil, fmt.Errorf("unresolved action handler: %q", name)
	}
	return a, nil
}

func (r *Registries) GuardNames() []string     { return r.guards.names() }
func (r *Registries) ConditionNames() []string { return r.conditions.names() }
func (r *Registries) ActionNames() []string    { return r.actions.names() }
