package validator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleRoster_SelectsByTriggerGlob(t *testing.T) {
	defs := []Definition{
		{ID: "lint-go", TriggerGlobs: []string{"**/*.go"}, Wave: "critical"},
		{ID: "lint-md", TriggerGlobs: []string{"**/*.md"}, Wave: "comprehensive"},
	}
	roster := AssembleRoster(defs, []string{"internal/foo/bar.go"}, nil, nil)

	require.Contains(t, roster, "critical")
	assert.Len(t, roster["critical"], 1)
	assert.Equal(t, "lint-go", roster["critical"][0].ID)
	assert.NotContains(t, roster, "comprehensive")
}

func TestAssembleRoster_AlwaysRunIncludedRegardlessOfChanges(t *testing.T) {
	defs := []Definition{{ID: "always", AlwaysRun: true, Wave: "critical"}}
	roster := AssembleRoster(defs, nil, nil, nil)
	assert.Len(t, roster["critical"], 1)
}

func TestAssembleRoster_ExplicitOverridesWave(t *testing.T) {
	defs := []Definition{{ID: "security", Wave: "comprehensive"}}
	roster := AssembleRoster(defs, nil, map[string]string{"security": "critical"}, nil)

	require.Contains(t, roster, "critical")
	assert.True(t, roster["critical"][0].ExplicitlyAdded)
}

func TestAssembleRoster_ExcludesUnmatchedNonAlwaysRun(t *testing.T) {
	defs := []Definition{{ID: "lint-go", TriggerGlobs: []string{"**/*.go"}, Wave: "critical"}}
	roster := AssembleRoster(defs, []string{"README.md"}, nil, nil)
	assert.Empty(t, roster)
}

func TestAssembleRoster_SortsMembersWithinWaveByID(t *testing.T) {
	defs := []Definition{
		{ID: "zzz", AlwaysRun: true, Wave: "critical"},
		{ID: "aaa", AlwaysRun: true, Wave: "critical"},
	}
	roster := AssembleRoster(defs, nil, nil, nil)
	require.Len(t, roster["critical"], 2)
	assert.Equal(t, "aaa", roster["critical"][0].ID)
	assert.Equal(t, "zzz", roster["critical"][1].ID)
}

func TestMatchGlob_DoubleStarMatchesNestedPaths(t *testing.T) {
	assert.True(t, matchGlob("**/*.go", "internal/validator/roster.go"))
	assert.True(t, matchGlob("**/*.go", "roster.go"))
	assert.False(t, matchGlob("**/*.go", "internal/validator/roster.md"))
}

func TestOrderedWaves_PreservesConfiguredOrderThenAppendsExtras(t *testing.T) {
	roster := map[string][]Annotated{
		"comprehensive": {{}},
		"critical":      {{}},
		"security":      {{}},
	}
	waves := OrderedWaves(roster, []string{"critical", "comprehensive"})
	assert.Equal(t, []string{"critical", "comprehensive", "security"}, waves)
}

func TestContext7Ready_MissingMarkersReported(t *testing.T) {
	dir := t.TempDir()
	ready, missing := Context7Ready(dir, "", []string{"react", "vue"})
	assert.False(t, ready)
	assert.ElementsMatch(t, []string{"react", "vue"}, missing)
}

func TestContext7Ready_MarkerPresentSatisfiesPackage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "context7-react.txt"), []byte("ok"), 0o644))

	ready, missing := Context7Ready(dir, "", []string{"react"})
	assert.True(t, ready)
	assert.Empty(t, missing)
}

func TestContext7Ready_BypassSkipsAllChecks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "context7-bypass.json"), []byte("{}"), 0o644))

	ready, _ := Context7Ready(dir, "", []string{"anything"})
	assert.True(t, ready)
}
