// Package handler implements Edison's three name-keyed registries — guards,
// conditions, and actions — that the state-machine engine (internal/statemachine)
// consults while driving a transition (spec.md §4.D). It is the Go-native
// rework of the teacher's guardrail system (internal/guards/guards.go), which
// modeled the same idea — composable checks returning a severity-bearing
// result — around a fixed GuardContext struct tied to the teacher's own
// artifact graph. Edison generalizes that struct into a typed Context capable
// of carrying any of Task, QA, or Session plus the surrounding config, and
// keeps the teacher's four-severity GuardResult (spec.md SUPPLEMENTED
// FEATURES "Guard severities") while swapping Condition for a plain boolean
// contract — conditions have no force-override path, so a severity adds
// nothing — plus void-returning Actions, per spec.md §4.D.
package handler

import (
	"github.com/edisonhq/edison/internal/config"
	"github.com/edisonhq/edison/internal/entity"
)

// Context is the mutable subtree guards, conditions, and actions observe and
// (for actions only) may mutate (spec.md §4.D "Contracts"). Guards and
// conditions MUST treat it as read-only.
type Context struct {
	Task    *entity.Task
	QA      *entity.QA
	Session *entity.Session
	Config  *config.Config

	// Reason carries a caller-supplied transition reason, consumed by
	// guards such as requires_rollback_reason and actions such as
	// record_blocker_reason.
	Reason string
	// Force signals the caller requested a soft-block override. Guards do
	// not read it; the engine and the planner pass it to
	// GuardResult.Blocking, where it overrides SoftBlock only.
	Force bool
	// ToState is the transition's destination state, set by the state
	// machine before guard/condition/action evaluation.
	ToState string

	// Extra carries handler-specific scratch values (e.g. validator
	// report counts, evidence manifests) populated by the caller for
	// guards/conditions/actions that need data outside the three
	// entities above.
	Extra map[string]any
}

// RequireTask returns the Task and true, or (nil, false) if absent — the
// fail-closed idiom every guard must use before touching ctx.Task
// (spec.md §4.D "MUST follow fail-closed semantics").
func (c *Context) RequireTask() (*entity.Task, bool) {
	if c == nil || c.Task == nil {
		return nil, false
	}
	return c.Task, true
}

// RequireQA returns the QA and true, or (nil, false) if absent.
func (c *Context) RequireQA() (*entity.QA, bool) {
	if c == nil || c.QA == nil {
		return nil, false
	}
	return c.QA, true
}

// RequireSession returns the Session and true, or (nil, false) if absent.
func (c *Context) RequireSession() (*entity.Session, bool) {
	if c == nil || c.Session == nil {
		return nil, false
	}
	return c.Session, true
}

// ExtraString fail-closed-reads a string scratch value: missing or
// wrong-typed returns ("", false).
func (c *Context) ExtraString(key string) (string, bool) {
	if c == nil || c.Extra == nil {
		return "", false
	}
	v, ok := c.Extra[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ExtraInt fail-closed-reads an int scratch value.
func (c *Context) ExtraInt(key string) (int, bool) {
	if c == nil || c.Extra == nil {
		return 0, false
	}
	v, ok := c.Extra[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// ExtraBool fail-closed-reads a bool scratch value.
func (c *Context) ExtraBool(key string) bool {
	if c == nil || c.Extra == nil {
		return false
	}
	v, _ := c.Extra[key].(bool)
	return v
}

// ExtraStrings fail-closed-reads a []string scratch value.
func (c *Context) ExtraStrings(key string) []string {
	if c == nil || c.Extra == nil {
		return nil
	}
	v, _ := c.Extra[key].([]string)
	return v
}
