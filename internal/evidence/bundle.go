package evidence

import (
	"fmt"
	"path/filepath"

	"github.com/edisonhq/edison/internal/pathio"
)

// TaskApproval is one bundle member's approval record (spec.md §4.H "Bundle
// approval marker" shape).
type TaskApproval struct {
	TaskID   string `json:"taskId"`
	Approved bool   `json:"approved"`
	Verdict  string `json:"verdict"`
	Round    int    `json:"round"`
}

// BundleApproval is the marker written exactly once per round when all
// blocking validators across the bundle have approved (spec.md §4.H).
type BundleApproval struct {
	Approved    bool           `json:"approved"`
	Tasks       []TaskApproval `json:"tasks"`
	GeneratedAt string         `json:"generatedAt"`
	Manifest    string         `json:"manifest"`
}

const bundleApprovalFile = "bundle-approved.json"

// WriteBundleApproval writes the marker into roundDir. Per spec.md §4.H
// ("MUST be written exactly once per round"), it refuses to overwrite an
// existing marker.
func WriteBundleApproval(roundDir string, approval BundleApproval) error {
	path := filepath.Join(roundDir, bundleApprovalFile)
	if pathio.Exists(path) {
		return fmt.Errorf("bundle approval marker already written for round directory %s", roundDir)
	}
	return pathio.SaveJSON(path, approval)
}

// ReadBundleApproval reads the marker from roundDir, returning
// (zero-value, false, nil) if absent — absence is not an error, it is the
// "not yet approved" state (spec.md §4.H "Absence or approved: false
// blocks...").
func ReadBundleApproval(roundDir string) (BundleApproval, bool, error) {
	path := filepath.Join(roundDir, bundleApprovalFile)
	if !pathio.Exists(path) {
		return BundleApproval{}, false, nil
	}
	var approval BundleApproval
	if err := pathio.LoadJSON(path, &approval); err != nil {
		return BundleApproval{}, false, err
	}
	return approval, true, nil
}

// IsApproved reports whether the bundle approval marker in roundDir grants
// approval for taskID specifically.
func IsApproved(roundDir, taskID string) (bool, error) {
	approval, found, err := ReadBundleApproval(roundDir)
	if err != nil {
		return false, err
	}
	if !found || !approval.Approved {
		return false, nil
	}
	for _, t := range approval.Tasks {
		if t.TaskID == taskID {
			return t.Approved, nil
		}
	}
	return false, nil
}
