package entity

import "path/filepath"

// taskStates is the search order Get walks before concluding a task does
// not exist: active states first, since most lookups are for in-flight work.
var taskStates = []string{TaskWIP, TaskTodo, TaskBlocked, TaskDone, TaskValidated}

var qaStates = []string{QAWIP, QATodo, QAWaiting, QADone, QAValidated}

var sessionStates = []string{SessionActive, SessionRecovery, SessionClosing, SessionValidated, SessionArchived}

// NewTaskRepository builds the Task repository rooted at <pmDir>/tasks.
func NewTaskRepository(pmDir string) *Repository[*Task] {
	return &Repository[*Task]{
		BaseDir: filepath.Join(pmDir, "tasks"),
		States:  taskStates,
		Codec:   TaskCodec{},
	}
}

// NewQARepository builds the QA repository rooted at <pmDir>/qa.
func NewQARepository(pmDir string) *Repository[*QA] {
	return &Repository[*QA]{
		BaseDir: filepath.Join(pmDir, "qa"),
		States:  qaStates,
		Codec:   QACodec{},
	}
}

// NewSessionRepository builds the Session repository rooted at
// <pmDir>/sessions.
func NewSessionRepository(pmDir string) *Repository[*Session] {
	return &Repository[*Session]{
		BaseDir: filepath.Join(pmDir, "sessions"),
		States:  sessionStates,
		Codec:   SessionCodec{},
	}
}

// TaskTags, TaskSession, and QASession adapt entity fields to the List
// filter helpers (tagsOf/sessionOf callbacks).
func TaskTags(t *Task) []string  { return t.Tags }
func TaskSession(t *Task) string { return t.Metadata.SessionID }
func QASession(q *QA) string     { return q.Metadata.SessionID }
