package entity

// Record is the common interface the repository uses to manipulate any
// entity kind generically: read/write its identity, its advisory state
// field, and append to its history (spec.md §3 "Location on disk encodes
// state: ... any in-file state field is advisory only").
type Record interface {
	RecordID() string
	RecordState() string
	SetRecordState(string)
	AppendHistory(HistoryEntry)
}

func (t *Task) RecordID() string             { return t.ID }
func (t *Task) RecordState() string          { return t.State }
func (t *Task) SetRecordState(s string)      { t.State = s }
func (t *Task) AppendHistory(h HistoryEntry) { t.History = append(t.History, h) }

func (q *QA) RecordID() string             { return q.ID }
func (q *QA) RecordState() string          { return q.State }
func (q *QA) SetRecordState(s string)      { q.State = s }
func (q *QA) AppendHistory(h HistoryEntry) { q.History = append(q.History, h) }

func (s *Session) RecordID() string             { return s.ID }
func (s *Session) RecordState() string          { return s.State }
func (s *Session) SetRecordState(v string)      { s.State = v }
func (s *Session) AppendHistory(h HistoryEntry) { s.History = append(s.History, h) }
