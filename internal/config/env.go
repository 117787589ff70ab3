package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix every Edison environment override carries
// (spec.md §4.B). Path segments below the prefix are separated by a double
// underscore: EDISON_session__recovery__timeoutHours →
// session.recovery.timeoutHours.
const EnvPrefix = "EDISON_"

// appendSuffix marks the "<key>__APPEND" convention (append to a sequence);
// a numeric final segment is the "<key>__<index>" convention (replace one
// element). These are the two sequence-mutation conventions spec.md §4.B
// names. Both are fatal configuration
// errors (spec.md §9 "Configuration precedence & env overrides") when
// applied to a mapping-valued path rather than a sequence.
const appendSuffix = "APPEND"

// ApplyEnv reads the process environment and overlays EDISON_-prefixed
// variables onto tree, returning the new merged tree. This is the highest
// precedence layer in spec.md §4.B's ordering, applied after all file-based
// layers.
func ApplyEnv(tree Tree, environ []string) (Tree, error) {
	out := make(Tree, len(tree))
	for k, v := range tree {
		out[k] = v
	}

	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		rawPath := strings.TrimPrefix(key, EnvPrefix)
		if rawPath == "" {
			continue
		}
		segments := strings.Split(rawPath, "__")
		parsed := parseEnvValue(val)

		if err := applyEnvSegments(out, segments, parsed); err != nil {
			return nil, fmt.Errorf("applying env override %s: %w", key, err)
		}
	}
	return out, nil
}

// applyEnvSegments walks segments into tree, handling a trailing APPEND or
// numeric-index segment as a sequence operator on the second-to-last path.
func applyEnvSegments(tree Tree, segments []string, value any) error {
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}

	last := segments[len(segments)-1]
	if last == appendSuffix {
		return applySequenceOp(tree, segments[:len(segments)-1], func(seq []any) ([]any, error) {
			return append(seq, value), nil
		})
	}
	if idx, err := strconv.Atoi(last); err == nil {
		return applySequenceOp(tree, segments[:len(segments)-1], func(seq []any) ([]any, error) {
			for len(seq) <= idx {
				seq = append(seq, nil)
			}
			seq[idx] = value
			return seq, nil
		})
	}

	// Plain scalar/mapping path: walk/create intermediate maps, set the leaf.
	cur := tree
	for i, seg := range segments[:len(segments)-1] {
		next, exists := cur[seg]
		if !exists {
			child := Tree{}
			cur[seg] = child
			cur = child
			continue
		}
		childTree, ok := asTree(next)
		if !ok {
			return fmt.Errorf("path segment %q is a scalar/sequence, cannot descend into it (at %s)",
				seg, strings.Join(segments[:i+1], "__"))
		}
		cur = childTree
	}
	cur[last] = value
	return nil
}

func applySequenceOp(tree Tree, pathToSeq []string, op func([]any) ([]any, error)) error {
	if len(pathToSeq) == 0 {
		return fmt.Errorf("sequence operator requires a key path")
	}
	cur := tree
	for i, seg := range pathToSeq[:len(pathToSeq)-1] {
		next, exists := cur[seg]
		if !exists {
			child := Tree{}
			cur[seg] = child
			cur = child
			continue
		}
		childTree, ok := asTree(next)
		if !ok {
			return fmt.Errorf("path segment %q is not a mapping (at %s)", seg, strings.Join(pathToSeq[:i+1], "__"))
		}
		cur = childTree
	}
	key := pathToSeq[len(pathToSeq)-1]
	existing, hasExisting := cur[key]
	if hasExisting {
		if _, isTree := asTree(existing); isTree {
			return fmt.Errorf("%q is a mapping; __APPEND/__<index> only apply to sequence-valued paths", key)
		}
	}
	seq, _ := existing.([]any)
	newSeq, err := op(seq)
	if err != nil {
		return err
	}
	cur[key] = newSeq
	return nil
}

// parseEnvValue implements spec.md §4.B's value parsing order: JSON first,
// then boolean/int/float, else the raw string.
func parseEnvValue(raw string) any {
	var jsonVal any
	if err := json.Unmarshal([]byte(raw), &jsonVal); err == nil {
		return jsonVal
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// Environ is a seam for tests; production code passes os.Environ().
func Environ() []string { return os.Environ() }
