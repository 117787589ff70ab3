// Package evidence implements Edison's round/snapshot/bundle-approval
// storage (spec.md §4.H). It is grounded on the corpus's git-plumbing idiom
// — githubnext-gh-aw/pkg/gitutil and its cli/workflow call sites
// (exec.Command("git", "rev-parse", ...), exec.Command("git", "diff", ...))
// — which shells out to the git binary rather than vendoring a pure-Go git
// implementation; no such library appears anywhere in the corpus.
package evidence

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
)

// Fingerprint identifies the working-tree state evidence was captured
// against (spec.md §4.H "Evidence snapshot").
type Fingerprint struct {
	GitHead  string
	DiffHash string
	Clean    bool
}

// Dir returns the snapshot directory path fragment for this fingerprint,
// relative to <evidence_root>/_snapshots.
func (f Fingerprint) Dir() string {
	state := "dirty"
	if f.Clean {
		state = "clean"
	}
	return fmt.Sprintf("%s/%s/%s", f.GitHead, f.DiffHash, state)
}

// Equal reports whether two fingerprints match exactly — the condition
// under which a round may reference a snapshot instead of storing evidence
// locally (spec.md §4.H "A round may reference a snapshot if fingerprints
// match; otherwise evidence must be local.").
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// CurrentFingerprint computes the fingerprint of the working tree at repoDir
// by shelling out to git: HEAD's commit SHA, and a SHA-256 digest of the
// canonical working-tree diff against HEAD.
func CurrentFingerprint(repoDir string) (Fingerprint, error) {
	head, err := gitOutput(repoDir, "rev-parse", "HEAD")
	if err != nil {
		return Fingerprint{}, fmt.Errorf("resolving HEAD: %w", err)
	}

	diff, err := gitOutput(repoDir, "diff", "--no-color", "--src-prefix=a/", "--dst-prefix=b/", "HEAD")
	if err != nil {
		return Fingerprint{}, fmt.Errorf("computing working-tree diff: %w", err)
	}

	sum := sha256.Sum256([]byte(diff))
	return Fingerprint{
		GitHead:  head,
		DiffHash: hex.EncodeToString(sum[:]),
		Clean:    strings.TrimSpace(diff) == "",
	}, nil
}

func gitOutput(repoDir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ChangedFiles lists paths that differ between baseRef and the working tree
// (spec.md §4.I roster assembly step 2 "Collect changed files across
// members (git diff against base)").
func ChangedFiles(repoDir, baseRef string) ([]string, error) {
	out, err := gitOutput(repoDir, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, fmt.Errorf("listing changed files against %s: %w", baseRef, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
