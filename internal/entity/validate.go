package entity

import (
	"fmt"
	"regexp"
)

// slugPattern matches kebab-case identifiers: lowercase letters, digits,
// and hyphens, starting with a letter. Generalized from the teacher's
// KebabCaseName guard (internal/guards/checks.go) into a reusable
// validator, per SPEC_FULL.md's "Kebab-case identifier validation".
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ValidateSlug reports an error if slug is not valid kebab-case.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: must be kebab-case (lowercase letters, digits, hyphens, starting with a letter)", slug)
	}
	return nil
}

var validTaskTypes = map[TaskType]bool{TaskFeature: true, TaskBug: true, TaskChore: true}

// ValidateTask checks structural and enumerated-field constraints before a
// save (spec.md §4.C "Validation"). Unknown keys are preserved by the YAML
// decode step upstream; missing required keys abort here.
func ValidateTask(t *Task) error {
	if t.ID == "" {
		return fmt.Errorf("task: id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("task %s: title is required", t.ID)
	}
	if t.Type == "" {
		return fmt.Errorf("task %s: type is required", t.ID)
	}
	if !validTaskTypes[t.Type] {
		return fmt.Errorf("task %s: invalid type %q (must be feature|bug|chore)", t.ID, t.Type)
	}
	if t.State == "" {
		return fmt.Errorf("task %s: state is required", t.ID)
	}
	for _, dep := range t.DependsOn {
		if dep == t.ID {
			return fmt.Errorf("task %s: cannot depend on itself", t.ID)
		}
	}
	return nil
}

// ValidateQA checks structural constraints on a QA record before a save.
func ValidateQA(q *QA) error {
	if q.ID == "" {
		return fmt.Errorf("qa: id is required")
	}
	if q.TaskID == "" {
		return fmt.Errorf("qa %s: taskId is required", q.ID)
	}
	if q.ID != QAID(q.TaskID) {
		return fmt.Errorf("qa %s: id must equal taskId+\"-qa\" (%s)", q.ID, QAID(q.TaskID))
	}
	if q.State == "" {
		return fmt.Errorf("qa %s: state is required", q.ID)
	}
	if q.Round < 0 {
		return fmt.Errorf("qa %s: round cannot be negative", q.ID)
	}
	return nil
}

// ValidateSession checks structural constraints on a Session before a save.
func ValidateSession(s *Session) error {
	if s.ID == "" {
		return fmt.Errorf("session: id is required")
	}
	if s.State == "" {
		return fmt.Errorf("session %s: state is required", s.ID)
	}
	return nil
}
