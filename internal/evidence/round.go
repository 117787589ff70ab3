package evidence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edisonhq/edison/internal/pathio"
)

// Round is one immutable validation round for a task (spec.md §4.H "Round
// directory").
type Round struct {
	EvidenceRoot string
	TaskID       string
	Number       int
}

// Dir returns <evidence_root>/<task-id>/round-<N>.
func (r Round) Dir() string {
	return filepath.Join(r.EvidenceRoot, r.TaskID, fmt.Sprintf("round-%d", r.Number))
}

// Prepare creates the round directory and seeds the two report stubs the
// round always starts with (spec.md §4.H: "an explicit `round prepare`
// operation that also initializes `implementation-report.md` and
// `validation-summary.md`"). Prepare succeeds only for a round directory
// that does not yet exist; it refuses to touch one that does, since rounds
// are immutable once created.
func (r Round) Prepare() error {
	dir := r.Dir()
	if pathio.Exists(dir) {
		return fmt.Errorf("round %d for task %s already exists; rounds are immutable", r.Number, r.TaskID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating round directory: %w", err)
	}
	for _, name := range []string{"implementation-report.md", "validation-summary.md"} {
		if err := pathio.WriteAtomic(filepath.Join(dir, name), []byte{}, 0o644); err != nil {
			return fmt.Errorf("seeding %s: %w", name, err)
		}
	}
	return nil
}

// DefaultRequiredEvidence is the configurable set spec.md §4.H names as the
// out-of-the-box default.
var DefaultRequiredEvidence = []string{
	"command-type-check.txt", "command-lint.txt", "command-test.txt", "command-build.txt",
}

// HasRequiredEvidence implements the has_required_evidence condition
// (spec.md §4.D, §4.H): every name in required must be present and
// non-empty either directly in the round directory, or — if snapshotDir is
// non-empty — in that snapshot directory. No fingerprint is compared here.
func HasRequiredEvidence(roundDir string, required []string, snapshotDir string) (bool, []string) {
	var missing []string
	for _, name := range required {
		if pathio.FileNonEmpty(filepath.Join(roundDir, name)) {
			continue
		}
		if snapshotDir != "" && pathio.FileNonEmpty(filepath.Join(snapshotDir, name)) {
			continue
		}
		missing = append(missing, name)
	}
	return len(missing) == 0, missing
}

// SnapshotDir returns the path under <evidence_root>/_snapshots for a given
// fingerprint, creating it if absent, ready for command-capture output.
func SnapshotDir(evidenceRoot string, fp Fingerprint) (string, error) {
	dir := filepath.Join(evidenceRoot, "_snapshots", fp.Dir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	return dir, nil
}

// WriteCapture writes the output of a captured command into the round
// directory, atomically. It never writes to a snapshot directory; snapshot
// capture goes through SnapshotDir.
func WriteCapture(roundDir, name string, output []byte) error {
	return pathio.WriteAtomic(filepath.Join(roundDir, name), output, 0o644)
}

// NextRoundNumber enforces round monotonicity (spec.md §4.I "Round number N
// is enforced monotonic"): it returns the smallest N for which no round
// directory yet exists under the task's evidence root.
func NextRoundNumber(evidenceRoot, taskID string) int {
	n := 1
	for {
		dir := filepath.Join(evidenceRoot, taskID, fmt.Sprintf("round-%d", n))
		if !pathio.Exists(dir) {
			return n
		}
		n++
	}
}
