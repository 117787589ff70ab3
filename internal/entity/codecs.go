package entity

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// taskHeader is the YAML frontmatter shape of a Task document; Body carries
// the free-text section separately (spec.md §4.C "Serialization").
type taskHeader struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Type          TaskType       `yaml:"type"`
	State         string         `yaml:"state"`
	Tags          []string       `yaml:"tags,omitempty"`
	DependsOn     []string       `yaml:"dependsOn,omitempty"`
	Related       []string       `yaml:"related,omitempty"`
	Parent        string         `yaml:"parent,omitempty"`
	BundleRoot    string         `yaml:"bundleRoot,omitempty"`
	Priority      int            `yaml:"priority,omitempty"`
	Wave          int            `yaml:"wave,omitempty"`
	BlockerReason string         `yaml:"blockerReason,omitempty"`
	Metadata      Metadata       `yaml:"metadata"`
	History       []HistoryEntry `yaml:"history,omitempty"`
}

// TaskCodec encodes/decodes Task as a frontmatter document named "<id>.md".
type TaskCodec struct{}

func (TaskCodec) FileName(id string) string { return id + ".md" }

func (TaskCodec) Encode(t *Task) ([]byte, error) {
	h := taskHeader{
		ID: t.ID, Title: t.Title, Type: t.Type, State: t.State,
		Tags: t.Tags, DependsOn: t.DependsOn, Related: t.Related,
		Parent: t.Parent, BundleRoot: t.BundleRoot,
		Priority: t.Priority, Wave: t.Wave, BlockerReason: t.BlockerReason,
		Metadata: t.Metadata, History: t.History,
	}
	return EncodeDocument(h, t.Body)
}

func (TaskCodec) Decode(data []byte) (*Task, error) {
	var h taskHeader
	body, err := DecodeDocument(data, &h)
	if err != nil {
		return nil, fmt.Errorf("decoding task: %w", err)
	}
	return &Task{
		Metadata: h.Metadata, ID: h.ID, Title: h.Title, Type: h.Type, State: h.State,
		Tags: h.Tags, DependsOn: h.DependsOn, Related: h.Related,
		Parent: h.Parent, BundleRoot: h.BundleRoot,
		Priority: h.Priority, Wave: h.Wave, BlockerReason: h.BlockerReason,
		History: h.History, Body: body,
	}, nil
}

// qaHeader is the YAML frontmatter shape of a QA document.
type qaHeader struct {
	ID           string         `yaml:"id"`
	TaskID       string         `yaml:"taskId"`
	State        string         `yaml:"state"`
	Round        int            `yaml:"round"`
	RoundDir     string         `yaml:"roundDir,omitempty"`
	RoundHistory []RoundSummary `yaml:"roundHistory,omitempty"`
	Metadata     Metadata       `yaml:"metadata"`
	History      []HistoryEntry `yaml:"history,omitempty"`
}

// QACodec encodes/decodes QA as a frontmatter document named "<taskId>-qa.md".
type QACodec struct{}

func (QACodec) FileName(id string) string { return id + ".md" }

func (QACodec) Encode(q *QA) ([]byte, error) {
	h := qaHeader{
		ID: q.ID, TaskID: q.TaskID, State: q.State, Round: q.Round,
		RoundDir: q.RoundDir, RoundHistory: q.RoundHistory,
		Metadata: q.Metadata, History: q.History,
	}
	return EncodeDocument(h, q.Body)
}

func (QACodec) Decode(data []byte) (*QA, error) {
	var h qaHeader
	body, err := DecodeDocument(data, &h)
	if err != nil {
		return nil, fmt.Errorf("decoding qa: %w", err)
	}
	return &QA{
		Metadata: h.Metadata, ID: h.ID, TaskID: h.TaskID, State: h.State, Round: h.Round,
		RoundDir: h.RoundDir, RoundHistory: h.RoundHistory, History: h.History, Body: body,
	}, nil
}

// SessionCodec encodes/decodes Session as a JSON record named
// "<id>/session.json" — sessions own a directory (for worktree metadata,
// activity logs, and round artifacts alongside the record itself).
type SessionCodec struct{}

func (SessionCodec) FileName(id string) string {
	return filepath.Join(id, "session.json")
}

func (SessionCodec) Encode(s *Session) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func (SessionCodec) Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}
