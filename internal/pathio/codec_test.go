package pathio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.json")
	in := sample{Name: "widget", Count: 3}

	require.NoError(t, SaveJSON(path, in))

	var out sample
	require.NoError(t, LoadJSON(path, &out))
	assert.Equal(t, in, out)
}

func TestYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.yaml")
	in := sample{Name: "gadget", Count: 7}

	require.NoError(t, SaveYAML(path, in))

	var out sample
	require.NoError(t, LoadYAML(path, &out))
	assert.Equal(t, in, out)
}

func TestLoadJSON_MissingFile(t *testing.T) {
	var out sample
	err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	assert.Error(t, err)
}
