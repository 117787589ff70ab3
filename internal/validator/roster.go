// Package validator implements the validator scheduler (spec.md §4.I):
// roster assembly, wave-ordered bounded-concurrency execution, fallback
// engines, Context7 marker pre-flight checks, and bundle-approval
// computation. The wave executor is grounded on
// githubnext-gh-aw/pkg/cli/logs.go's use of sourcegraph/conc's
// pool.NewWithResults[T]().WithMaxGoroutines(n) for bounded-concurrency
// fan-out with per-task results, the same shape §4.I's "launch as child
// processes up to concurrency cap" step needs.
package validator

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/edisonhq/edison/internal/pathio"
)

// Scope controls which tasks a roster covers (spec.md §4.I "Roster
// assembly").
type Scope string

const (
	ScopeTask      Scope = "task"
	ScopeHierarchy Scope = "hierarchy"
	ScopeBundle    Scope = "bundle"
)

// Definition is one validator's static configuration (spec.md §4.I steps
// 3-4).
type Definition struct {
	ID               string   `yaml:"id"`
	AlwaysRun        bool     `yaml:"alwaysRun"`
	TriggerGlobs     []string `yaml:"triggerGlobs"`
	Wave             string   `yaml:"wave"`
	Blocking         bool     `yaml:"blocking"`
	Engine           string   `yaml:"engine"`
	FallbackEngine   string   `yaml:"fallbackEngine"`
	PromptTemplate   string   `yaml:"promptTemplate"`
	Context7Packages []string `yaml:"context7Packages"`
}

// Annotated is a Definition assigned into a roster. Its final wave (possibly
// overridden by an explicit --add-validators wave:name request) is the
// roster map key it sits under; Definition.Wave keeps the declared wave.
type Annotated struct {
	Definition
	ExplicitlyAdded bool
}

// AssembleRoster implements spec.md §4.I roster assembly steps 1-5: collect
// members, collect changed files, select validators whose trigger matches
// (or that always run, or were explicitly requested), and group by wave.
func AssembleRoster(definitions []Definition, changedFiles []string, explicit map[string]string, waveOrder []string) map[string][]Annotated {
	byWave := map[string][]Annotated{}
	for _, d := range definitions {
		wave, wasExplicit := explicit[d.ID]
		included := d.AlwaysRun || matchesAny(d.TriggerGlobs, changedFiles)
		if wasExplicit {
			included = true
		} else {
			wave = d.Wave
		}
		if !included {
			continue
		}
		if wave == "" {
			wave = d.Wave
		}
		byWave[wave] = append(byWave[wave], Annotated{Definition: d, ExplicitlyAdded: wasExplicit})
	}
	for wave := range byWave {
		sort.Slice(byWave[wave], func(i, j int) bool { return byWave[wave][i].ID < byWave[wave][j].ID })
	}
	return byWave
}

func matchesAny(globs, files []string) bool {
	for _, g := range globs {
		for _, f := range files {
			if matchGlob(g, f) {
				return true
			}
		}
	}
	return false
}

// matchGlob extends filepath.Match with a leading "**/" meaning "any number
// of directory components", since trigger patterns are commonly written
// that way (e.g. "**/*.go") and filepath.Match alone has no "**" support.
func matchGlob(pattern, path string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		if ok, _ := filepath.Match(rest, filepath.Base(path)); ok {
			return true
		}
		return matchGlob(rest, path) || strings.HasSuffix(path, "/"+rest)
	}
	ok, err := filepath.Match(pattern, path)
	return err == nil && ok
}

// OrderedWaves returns waveOrder filtered down to the waves actually
// present in roster, preserving waveOrder's sequence (spec.md §4.I step 5
// "order waves per spec (default: critical, then comprehensive)").
func OrderedWaves(roster map[string][]Annotated, waveOrder []string) []string {
	var out []string
	for _, w := range waveOrder {
		if _, ok := roster[w]; ok {
			out = append(out, w)
		}
	}
	for w := range roster {
		found := false
		for _, seen := range out {
			if seen == w {
				found = true
				break
			}
		}
		if !found {
			out = append(out, w)
		}
	}
	return out
}

// Context7Ready implements the Context7 marker pre-flight check (spec.md
// §4.I "Context7 markers"): every declared package must have a marker file
// in roundDir or snapshotDir, unless a non-empty context7-bypass.json is
// present in roundDir. The bypass file's content is not inspected: no
// signature or written justification is checked.
func Context7Ready(roundDir, snapshotDir string, packages []string) (ready bool, missing []string) {
	if bypassPresent(roundDir) {
		return true, nil
	}
	for _, pkg := range packages {
		if hasMarker(roundDir, pkg) || (snapshotDir != "" && hasMarker(snapshotDir, pkg)) {
			continue
		}
		missing = append(missing, pkg)
	}
	return len(missing) == 0, missing
}

func hasMarker(dir, pkg string) bool {
	for _, ext := range []string{".txt", ".md"} {
		if dir != "" && pathio.FileNonEmpty(filepath.Join(dir, "context7-"+pkg+ext)) {
			return true
		}
	}
	return false
}

func bypassPresent(dir string) bool {
	return dir != "" && pathio.FileNonEmpty(filepath.Join(dir, "context7-bypass.json"))
}
