package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSequence_DisableDirectiveRemovesOnlyNamedEntry(t *testing.T) {
	existing := []any{
		map[string]any{"path": "validators/lint"},
		map[string]any{"path": "validators/test"},
		map[string]any{"path": "validators/build"},
	}
	incoming := []any{
		map[string]any{"path": "validators/test", "enabled": false},
	}

	merged := mergeSequence(existing, true, incoming)

	var paths []any
	for _, m := range merged {
		paths = append(paths, m.(map[string]any)["path"])
	}
	assert.ElementsMatch(t, []any{"validators/lint", "validators/build"}, paths)
}

func TestMergeSequence_DisableMixedWithNewEntryKeepsRestOfBase(t *testing.T) {
	existing := []any{
		map[string]any{"path": "validators/lint"},
		map[string]any{"path": "validators/test"},
		map[string]any{"path": "validators/build"},
	}
	incoming := []any{
		map[string]any{"path": "validators/test", "enabled": false},
		map[string]any{"path": "validators/custom"},
	}

	merged := mergeSequence(existing, true, incoming)

	var paths []any
	for _, m := range merged {
		paths = append(paths, m.(map[string]any)["path"])
	}
	assert.ElementsMatch(t, []any{"validators/lint", "validators/build", "validators/custom"}, paths)
}

func TestMergeSequence_NoDisableDirectiveFullyReplaces(t *testing.T) {
	existing := []any{
		map[string]any{"path": "validators/lint"},
		map[string]any{"path": "validators/test"},
	}
	incoming := []any{
		map[string]any{"path": "validators/custom"},
	}

	merged := mergeSequence(existing, true, incoming)

	assert.Equal(t, incoming, merged)
}

func TestMergeSequence_PlusSentinelAppendsToExisting(t *testing.T) {
	existing := []any{"a", "b"}
	incoming := []any{"+", "c"}

	merged := mergeSequence(existing, true, incoming)

	assert.Equal(t, []any{"a", "b", "c"}, merged)
}

func TestMergeSequence_NoExistingValueReturnsIncoming(t *testing.T) {
	incoming := []any{map[string]any{"path": "validators/custom"}}

	merged := mergeSequence(nil, false, incoming)

	assert.Equal(t, incoming, merged)
}

func TestDeepMerge_NestedTreeMergesRatherThanReplaces(t *testing.T) {
	dst := Tree{"qa": Tree{"max_rounds": 3, "required_evidence": []any{"lint"}}}
	src := Tree{"qa": Tree{"max_rounds": 5}}

	merged := DeepMerge(dst, src)

	qa := merged["qa"].(Tree)
	assert.Equal(t, 5, qa["max_rounds"])
	assert.Equal(t, []any{"lint"}, qa["required_evidence"])
}
