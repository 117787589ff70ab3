package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
)

// Tree is the merged configuration document: a generic nested map, the same
// representation every layer parses into before merging (spec.md §4.B).
type Tree map[string]any

// Layer is one named, ordered source of configuration. Source is the
// originating file path (for error messages); Optional layers that are
// missing are silently skipped, non-optional missing layers are fatal
// (spec.md §4.B "Failure semantics").
type Layer struct {
	Name     string
	Source   string
	Tree     Tree
	Optional bool
}

// LoadYAMLLayer parses a single YAML file into a Layer. A missing optional
// file yields an empty, present layer (so merge order is stable); a missing
// required file is an error.
func LoadYAMLLayer(name, path string, optional bool) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && optional {
			return Layer{Name: name, Source: path, Tree: Tree{}, Optional: true}, nil
		}
		return Layer{}, fmt.Errorf("loading config layer %q from %s: %w", name, path, err)
	}
	var t Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Layer{}, fmt.Errorf("parsing config layer %q (%s): %w", name, path, err)
	}
	if t == nil {
		t = Tree{}
	}
	return Layer{Name: name, Source: path, Tree: t, Optional: optional}, nil
}

// LoadYAMLLayerDir loads and deep-merges every *.yaml/*.yml file in dir, in
// lexical filename order, into a single layer. Used for P/config/*.yaml and
// P/config.local/*.yaml (spec.md §6). A missing directory is treated like a
// missing optional layer.
func LoadYAMLLayerDir(name, dir string) (Layer, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return Layer{Name: name, Source: dir, Tree: Tree{}, Optional: true}, nil
	}
	if err != nil {
		return Layer{}, fmt.Errorf("reading config dir %q (%s): %w", name, dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	merged := Tree{}
	for _, f := range files {
		sub, err := LoadYAMLLayer(name, filepath.Join(dir, f), false)
		if err != nil {
			return Layer{}, err
		}
		merged = DeepMerge(merged, sub.Tree)
	}
	return Layer{Name: name, Source: dir, Tree: merged, Optional: true}, nil
}

// MergeLayers folds layers in order (low → high precedence), as spec.md
// §4.B prescribes: bundled defaults, active packs (topological order),
// user config, project config, project-local overrides, environment.
// Environment overrides are applied separately by ApplyEnv after this call,
// since they use a distinct key-path grammar, not a Tree.
func MergeLayers(layers ...Layer) Tree {
	result := Tree{}
	for _, l := range layers {
		result = DeepMerge(result, l.Tree)
	}
	return result
}

// DeepMerge merges src into a copy of dst per spec.md §4.B merge semantics:
// mappings deep-merge recursively (higher layer wins on scalar conflicts,
// extends mappings); sequences replace by default, except for the two
// explicit operators handled here:
//   - an element of the form {"path": ..., "enabled": false} whose "path"
//     matches a dst element's "path" disables (removes) that dst element
//     instead of appending/replacing wholesale;
//   - a sequence whose first element is the sentinel string "+" signals
//     append-in-list: the sentinel is dropped and the remaining elements
//     are appended to dst's existing sequence instead of replacing it.
func DeepMerge(dst, src Tree) Tree {
	out := make(Tree, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		existing, hasExisting := out[k]
		out[k] = mergeValue(existing, hasExisting, v)
	}
	return out
}

func mergeValue(existing any, hasExisting bool, incoming any) any {
	switch incomingTyped := incoming.(type) {
	case Tree:
		if hasExisting {
			if existingTree, ok := asTree(existing); ok {
				return DeepMerge(existingTree, incomingTyped)
			}
		}
		return incomingTyped
	case map[string]any:
		return mergeValue(existing, hasExisting, Tree(incomingTyped))
	case []any:
		return mergeSequence(existing, hasExisting, incomingTyped)
	default:
		return incoming
	}
}

func asTree(v any) (Tree, bool) {
	switch t := v.(type) {
	case Tree:
		return t, true
	case map[string]any:
		return Tree(t), true
	default:
		return nil, false
	}
}

func mergeSequence(existing any, hasExisting bool, incoming []any) []any {
	if len(incoming) > 0 {
		if sentinel, ok := incoming[0].(string); ok && sentinel == "+" {
			existingSeq, _ := existing.([]any)
			return append(append([]any{}, existingSeq...), incoming[1:]...)
		}
	}
	existingSeq, ok := existing.([]any)
	if !hasExisting || !ok {
		return incoming
	}
	// Apply {path, enabled:false} disables against the existing list first.
	base := append([]any{}, existingSeq...)
	anyDisable := false
	for _, item := range incoming {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		enabled, hasEnabled := m["enabled"]
		path, hasPath := m["path"]
		if hasEnabled && hasPath && enabled == false {
			base = removeByPath(base, path)
			anyDisable = true
		}
	}
	var passthrough []any
	for _, item := range incoming {
		if m, ok := item.(map[string]any); ok {
			if enabled, hasEnabled := m["enabled"]; hasEnabled && enabled == false {
				continue
			}
		}
		passthrough = append(passthrough, item)
	}
	// A layer that names at least one disable directive is editing the
	// existing sequence in place (spec.md §4.B "disables that default ...
	// without replacing the entire list"): the result is base (with
	// disabled entries removed) plus whatever new entries rode along.
	// A layer with no disable directives at all is ordinary full-replace
	// sequence semantics.
	if anyDisable {
		return append(base, passthrough...)
	}
	return append([]any{}, passthrough...)
}

func removeByPath(seq []any, path any) []any {
	out := seq[:0:0]
	for _, item := range seq {
		if m, ok := item.(map[string]any); ok {
			if m["path"] == path {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
