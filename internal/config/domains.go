package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

// Config is the merged, placeholder-resolved configuration tree, exposed
// through lazy typed domain accessors (spec.md §4.B "Accessors are lazy;
// each domain parses only its subtree"). Unknown top-level keys are kept in
// Raw for forward compatibility but are not surfaced through any domain
// struct; Warnings records keys no known domain claimed.
type Config struct {
	Raw      Tree
	mu       sync.Mutex
	cache    map[string]any
	Warnings []string
}

// NewConfig wraps an already-merged, placeholder-resolved tree.
func NewConfig(tree Tree) *Config {
	c := &Config{Raw: tree, cache: make(map[string]any)}
	for k := range tree {
		if !knownDomains[k] {
			c.Warnings = append(c.Warnings, fmt.Sprintf("unknown config key %q is kept but not parsed by any domain", k))
		}
	}
	sort.Strings(c.Warnings)
	return c
}

var knownDomains = map[string]bool{"task": true, "session": true, "qa": true, "workflow": true,
	"composition": true, "orchestration": true, "memory": true, "continuation": true, "worktrees": true}

func parseDomain[T any](c *Config, key string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache[key]; ok {
		return cached.(*T), nil
	}
	var out T
	sub, ok := c.Raw[key]
	if ok {
		data, err := yaml.Marshal(sub)
		if err != nil {
			return nil, fmt.Errorf("re-encoding config domain %q: %w", key, err)
		}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("parsing config domain %q: %w", key, err)
		}
	}
	c.cache[key] = &out
	return &out, nil
}

// TaskDomain configures Task lifecycle defaults.
type TaskDomain struct {
	DefaultState   string   `yaml:"defaultState"`
	RequiredFields []string `yaml:"requiredFields"`
}

func (c *Config) Task() (*TaskDomain, error) {
	d, err := parseDomain[TaskDomain](c, "task")
	if err != nil {
		return nil, err
	}
	if d.DefaultState == "" {
		d.DefaultState = "todo"
	}
	return d, nil
}

// SessionDomain configures Session lifecycle and recovery.
type SessionDomain struct {
	CompletionPolicy string `yaml:"completionPolicy"`
	Recovery         struct {
		TimeoutHours int `yaml:"timeoutHours"`
	} `yaml:"recovery"`
}

func (c *Config) Session() (*SessionDomain, error) {
	d, err := parseDomain[SessionDomain](c, "session")
	if err != nil {
		return nil, err
	}
	if d.CompletionPolicy == "" {
		// spec.md §9 Open Question: default made explicit here.
		d.CompletionPolicy = "parent_validated_children_done"
	}
	if d.Recovery.TimeoutHours == 0 {
		d.Recovery.TimeoutHours = 24
	}
	return d, nil
}

// QADomain configures QA round defaults.
type QADomain struct {
	RequiredEvidence []string `yaml:"requiredEvidence"`
	MaxRounds        int      `yaml:"maxRounds"`
}

func (c *Config) QA() (*QADomain, error) {
	d, err := parseDomain[QADomain](c, "qa")
	if err != nil {
		return nil, err
	}
	if len(d.RequiredEvidence) == 0 {
		d.RequiredEvidence = []string{
			"command-type-check.txt", "command-lint.txt", "command-test.txt", "command-build.txt",
		}
	}
	if d.MaxRounds == 0 {
		d.MaxRounds = 3
	}
	return d, nil
}

// WorkflowDomain configures the state-machine spec locations per entity kind.
type WorkflowDomain struct {
	Specs map[string]string `yaml:"specs"` // kind -> path to transitions YAML
}

func (c *Config) Workflow() (*WorkflowDomain, error) {
	return parseDomain[WorkflowDomain](c, "workflow")
}

// CompositionDomain configures the composition engine (§4.G).
type CompositionDomain struct {
	OutputPath string         `yaml:"outputPath"`
	Dedup      DedupConfig    `yaml:"dedup"`
	Strategies map[string]any `yaml:"strategies"`
}

// DedupConfig parameterizes the shingle dedup pass (spec.md §4.G).
type DedupConfig struct {
	ShingleSize int     `yaml:"shingleSize"`
	Threshold   float64 `yaml:"threshold"`
	MinShingles int     `yaml:"minShingles"`
}

func (c *Config) Composition() (*CompositionDomain, error) {
	d, err := parseDomain[CompositionDomain](c, "composition")
	if err != nil {
		return nil, err
	}
	if d.OutputPath == "" {
		d.OutputPath = "_generated"
	}
	if d.Dedup.ShingleSize == 0 {
		d.Dedup.ShingleSize = 8
	}
	if d.Dedup.Threshold == 0 {
		d.Dedup.Threshold = 0.37
	}
	if d.Dedup.MinShingles == 0 {
		d.Dedup.MinShingles = 5
	}
	return d, nil
}

// OrchestrationDomain configures the validator scheduler (§4.I).
type OrchestrationDomain struct {
	Concurrency         int      `yaml:"concurrency"`
	TimeoutSeconds       int      `yaml:"timeoutSeconds"`
	Waves                []string `yaml:"waves"`
	EmptyRosterPolicy    string   `yaml:"emptyRosterPolicy"` // "strict" | "permissive"
}

func (c *Config) Orchestration() (*OrchestrationDomain, error) {
	d, err := parseDomain[OrchestrationDomain](c, "orchestration")
	if err != nil {
		return nil, err
	}
	if d.Concurrency == 0 {
		d.Concurrency = 4
	}
	if d.TimeoutSeconds == 0 {
		d.TimeoutSeconds = 300
	}
	if len(d.Waves) == 0 {
		d.Waves = []string{"critical", "comprehensive"}
	}
	if d.EmptyRosterPolicy == "" {
		// spec.md §9 Open Question: default made explicit as "strict".
		d.EmptyRosterPolicy = "strict"
	}
	return d, nil
}

// MemoryDomain configures the memory pipeline (§4.J).
type MemoryDomain struct {
	Enabled   bool     `yaml:"enabled"`
	Providers []string `yaml:"providers"`
	Steps     []string `yaml:"steps"`
}

func (c *Config) Memory() (*MemoryDomain, error) {
	d, err := parseDomain[MemoryDomain](c, "memory")
	if err != nil {
		return nil, err
	}
	if len(d.Steps) == 0 {
		d.Steps = []string{"session-insights-v1"}
	}
	return d, nil
}

// ContinuationDomain configures session continuation policy (out-of-core
// per spec.md §1, but the core still needs to read its budgets/mode).
type ContinuationDomain struct {
	Mode   string `yaml:"mode"`
	Budget int    `yaml:"budget"`
}

func (c *Config) Continuation() (*ContinuationDomain, error) {
	return parseDomain[ContinuationDomain](c, "continuation")
}

// WorktreesDomain configures the create_worktree/cleanup_worktree action
// gate (§4.D); the worktree implementation itself is out of core scope.
type WorktreesDomain struct {
	Enabled bool `yaml:"enabled"`
}

func (c *Config) Worktrees() (*WorktreesDomain, error) {
	return parseDomain[WorktreesDomain](c, "worktrees")
}

// PathTruthy resolves a dotted key path (e.g. "worktrees.enabled") against
// Raw and reports whether it is present and truthy — the predicate the
// state-machine engine uses for `config.<path>` action timing (spec.md
// §4.D "run only if that config value is truthy").
func (c *Config) PathTruthy(path string) bool {
	v, ok := GetPath(c.Raw, path)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case float64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

// GetPath walks a dotted key path through a Tree, returning (nil, false) if
// any segment is missing or not a nested map.
func GetPath(tree Tree, path string) (any, bool) {
	segments := splitPath(path)
	var cur any = tree
	for _, seg := range segments {
		t, ok := asTree(cur)
		if !ok {
			return nil, false
		}
		v, ok := t[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}
