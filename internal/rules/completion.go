package rules

import "github.com/edisonhq/edison/internal/entity"

// EvaluateCompletion applies the configured session-completion policy
// (spec.md §4.F step 5; policy default resolved in config.SessionDomain).
func EvaluateCompletion(policy string, tasks []*entity.Task) (bool, []ReasonIncomplete) {
	switch policy {
	case "all_tasks_validated":
		return allTasksValidated(tasks)
	default: // "parent_validated_children_done"
		return parentValidatedChildrenDone(tasks)
	}
}

func allTasksValidated(tasks []*entity.Task) (bool, []ReasonIncomplete) {
	var notValidated []string
	for _, t := range tasks {
		if t.State != entity.TaskValidated {
			notValidated = append(notValidated, t.ID)
		}
	}
	if len(notValidated) == 0 {
		return true, nil
	}
	return false, []ReasonIncomplete{{
		Code:    "tasks_not_validated",
		Message: "one or more tasks have not reached validated",
		TaskIDs: notValidated,
	}}
}

// parentValidatedChildrenDone requires top-level (no Parent) tasks to reach
// validated, and every child task (non-empty Parent) to reach at least done
// — children are covered by their parent's QA round rather than needing
// independent validation.
func parentValidatedChildrenDone(tasks []*entity.Task) (bool, []ReasonIncomplete) {
	var reasons []ReasonIncomplete
	var parentsNotValidated []string
	var childrenNotDone []string

	for _, t := range tasks {
		if t.Parent == "" {
			if t.State != entity.TaskValidated {
				parentsNotValidated = append(parentsNotValidated, t.ID)
			}
			continue
		}
		if t.State != entity.TaskDone && t.State != entity.TaskValidated {
			childrenNotDone = append(childrenNotDone, t.ID)
		}
	}

	if len(parentsNotValidated) > 0 {
		reasons = append(reasons, ReasonIncomplete{
			Code:    "parent_tasks_not_validated",
			Message: "one or more root tasks have not reached validated",
			TaskIDs: parentsNotValidated,
		})
	}
	if len(childrenNotDone) > 0 {
		reasons = append(reasons, ReasonIncomplete{
			Code:    "child_tasks_not_done",
			Message: "one or more child tasks have not reached done",
			TaskIDs: childrenNotDone,
		})
	}
	return len(reasons) == 0, reasons
}
