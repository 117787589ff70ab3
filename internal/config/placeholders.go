package config

import (
	"fmt"
	"regexp"
)

// PlaceholderSet supplies the built-in placeholder values spec.md §4.B
// names: {PROJECT_ROOT}, {PROJECT_NAME}, {PROJECT_CONFIG_DIR},
// {PROJECT_EDISON_DIR}.
type PlaceholderSet map[string]string

var placeholderPattern = regexp.MustCompile(`\{([A-Z_]+)\}`)

// ResolvePlaceholders walks every string value in tree and substitutes
// placeholders from set. Resolution is single-pass (spec.md §4.B) — a
// placeholder whose substitution itself contains another placeholder is
// left unresolved, which is how a cycle between two placeholder values is
// detected and rejected below.
func ResolvePlaceholders(tree Tree, set PlaceholderSet) (Tree, error) {
	out := make(Tree, len(tree))
	for k, v := range tree {
		resolved, err := resolveValue(v, set)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(v any, set PlaceholderSet) (any, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, set)
	case Tree:
		return ResolvePlaceholders(t, set)
	case map[string]any:
		return ResolvePlaceholders(Tree(t), set)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := resolveValue(item, set)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, set PlaceholderSet) (string, error) {
	var resolveErr error
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := set[name]
		if !ok {
			return match // unknown placeholder passes through unchanged
		}
		if placeholderPattern.MatchString(val) {
			resolveErr = fmt.Errorf("placeholder cycle: {%s} resolves to a value containing another placeholder (%q)", name, val)
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}
