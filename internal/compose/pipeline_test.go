package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandLoops_NestedEachBlocksResolveInnermostFirst(t *testing.T) {
	p := &Pipeline{
		Loop: map[string][]map[string]any{
			"outer": {
				{"name": "a"},
				{"name": "b"},
			},
			"inner": {
				{"name": "x"},
			},
		},
	}

	out, err := p.expandLoops("before{{#each outer}}A-{{this.name}}{{#each inner}}B-{{this.name}}{{/each}}C{{/each}}after")
	require.NoError(t, err)

	assert.NotContains(t, out, "{{#each")
	assert.NotContains(t, out, "{{/each}}")
	assert.Contains(t, out, "A-a")
	assert.Contains(t, out, "A-b")
	assert.Contains(t, out, "B-x")
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
}

func TestExpandLoops_SiblingEachBlocksBothExpand(t *testing.T) {
	p := &Pipeline{
		Loop: map[string][]map[string]any{
			"one": {{"name": "a"}},
			"two": {{"name": "b"}},
		},
	}

	out, err := p.expandLoops("{{#each one}}1-{{this.name}}{{/each}}|{{#each two}}2-{{this.name}}{{/each}}")
	require.NoError(t, err)

	assert.Equal(t, "1-a|2-b", out)
}

func TestExpandLoops_UnboundKeyReturnsError(t *testing.T) {
	p := &Pipeline{Loop: map[string][]map[string]any{}}

	_, err := p.expandLoops("{{#each missing}}x{{/each}}")
	assert.Error(t, err)
}

func TestExpandLoops_IndexAndLastMarkers(t *testing.T) {
	p := &Pipeline{
		Loop: map[string][]map[string]any{
			"items": {
				{"name": "a"},
				{"name": "b"},
			},
		},
	}

	out, err := p.expandLoops("{{#each items}}[{{@index}}:{{this.name}}:{{@last}}]{{/each}}")
	require.NoError(t, err)

	assert.Equal(t, "[0:a:false][1:b:true]", out)
}
