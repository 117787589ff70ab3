// Package entity implements Edison's Task/QA/Session data model and the
// file-backed repository that owns them (spec.md §3, §4.C). It is the
// Go-native re-homing of the teacher's typed-entity shape
// (internal/emergent/types.go) onto a file store instead of a remote graph
// API, which spec.md §1 explicitly requires ("all state is file-backed and
// single-host").
package entity

import "time"

// Kind identifies which entity family a document belongs to.
type Kind string

const (
	KindTask    Kind = "task"
	KindQA      Kind = "qa"
	KindSession Kind = "session"
)

// Task states (spec.md §3 lifecycle).
const (
	TaskTodo      = "todo"
	TaskWIP       = "wip"
	TaskDone      = "done"
	TaskValidated = "validated"
	TaskBlocked   = "blocked"
)

// QA states (spec.md §3 lifecycle).
const (
	QAWaiting   = "waiting"
	QATodo      = "todo"
	QAWIP       = "wip"
	QADone      = "done"
	QAValidated = "validated"
)

// Session states (spec.md §3 lifecycle).
const (
	SessionActive    = "active"
	SessionClosing   = "closing"
	SessionValidated = "validated"
	SessionArchived  = "archived"
	SessionRecovery  = "recovery"
)

// TaskType enumerates the kinds of implementation work a Task represents.
type TaskType string

const (
	TaskFeature TaskType = "feature"
	TaskBug     TaskType = "bug"
	TaskChore   TaskType = "chore"
)

// Metadata is the block every entity shares (spec.md §3 "Entities").
type Metadata struct {
	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updatedAt" json:"updatedAt"`
	Owner     string    `yaml:"owner,omitempty" json:"owner,omitempty"`
	SessionID string    `yaml:"sessionId,omitempty" json:"sessionId,omitempty"`
}

// HistoryEntry records one state transition (spec.md §3 "State history
// entry"). Append-only; see §8 "History monotonicity".
type HistoryEntry struct {
	FromState string    `yaml:"fromState,omitempty" json:"fromState,omitempty"`
	ToState   string    `yaml:"toState" json:"toState"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Reason    string    `yaml:"reason,omitempty" json:"reason,omitempty"`
	Rules     []string  `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Task is the unit of implementation work (spec.md §3 "Task").
type Task struct {
	Metadata

	ID         string   `yaml:"id" json:"id"`
	Title      string   `yaml:"title" json:"title"`
	Type       TaskType `yaml:"type" json:"type"`
	State      string   `yaml:"state" json:"state"` // advisory only; directory name is authoritative
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	DependsOn  []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Related    []string `yaml:"related,omitempty" json:"related,omitempty"`
	Parent     string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	BundleRoot string   `yaml:"bundleRoot,omitempty" json:"bundleRoot,omitempty"`
	Priority   int      `yaml:"priority,omitempty" json:"priority,omitempty"`
	Wave       int      `yaml:"wave,omitempty" json:"wave,omitempty"`

	// BlockerReason records why a task entered the blocked state (spec.md
	// §4.D action record_blocker_reason / condition has_blocker_reason).
	BlockerReason string `yaml:"blockerReason,omitempty" json:"blockerReason,omitempty"`

	History []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
	Body    string         `yaml:"-" json:"-"` // free-text brief, stored after the frontmatter fence
}

// QAID derives the QA identifier for a Task ID (spec.md §3: "Identifier is
// `<task-id>-qa`").
func QAID(taskID string) string { return taskID + "-qa" }

// RoundSummary captures one round's outcome for the QA document (spec.md §3
// "per-round summaries").
type RoundSummary struct {
	Round      int    `yaml:"round" json:"round"`
	Verdict    string `yaml:"verdict" json:"verdict"` // approve | reject | blocked | pending
	Summary    string `yaml:"summary,omitempty" json:"summary,omitempty"`
	ApprovedAt string `yaml:"approvedAt,omitempty" json:"approvedAt,omitempty"`
}

// QA is the per-task validation dossier (spec.md §3 "QA record").
type QA struct {
	Metadata

	ID           string         `yaml:"id" json:"id"`
	TaskID       string         `yaml:"taskId" json:"taskId"`
	State        string         `yaml:"state" json:"state"`
	Round        int            `yaml:"round" json:"round"`
	RoundDir     string         `yaml:"roundDir,omitempty" json:"roundDir,omitempty"`
	RoundHistory []RoundSummary `yaml:"roundHistory,omitempty" json:"roundHistory,omitempty"`

	History []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
	Body    string         `yaml:"-" json:"-"`
}

// ContinuationSettings configures how a session resumes after interruption.
// Continuation/heartbeat plugins themselves are out of core scope
// (spec.md §1); the core only persists the settings.
type ContinuationSettings struct {
	Mode   string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Budget int    `yaml:"budget,omitempty" json:"budget,omitempty"`
}

// ActivityEntry is one line in a Session's activity log.
type ActivityEntry struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Message   string    `yaml:"message" json:"message"`
}

// Session owns a set of claimed tasks and QA records (spec.md §3 "Session").
type Session struct {
	Metadata

	ID           string               `yaml:"id" json:"id"`
	State        string               `yaml:"state" json:"state"`
	Branch       string               `yaml:"branch,omitempty" json:"branch,omitempty"`
	Worktree     string               `yaml:"worktree,omitempty" json:"worktree,omitempty"`
	TaskIDs      []string             `yaml:"taskIds,omitempty" json:"taskIds,omitempty"`
	QAIDs        []string             `yaml:"qaIds,omitempty" json:"qaIds,omitempty"`
	Continuation ContinuationSettings `yaml:"continuation,omitempty" json:"continuation,omitempty"`
	Activity     []ActivityEntry      `yaml:"activity,omitempty" json:"activity,omitempty"`

	History []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
}
