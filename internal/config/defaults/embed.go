// Package defaults embeds Edison's bundled configuration defaults (spec.md
// §4.B "Layers": the mandatory, lowest-precedence layer every deployment
// carries even with zero project config present.
package defaults

import (
	"embed"
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/edisonhq/edison/internal/config"
)

//go:embed defaults.yaml
var fs embed.FS

// Loader is a config.BundledDefaultsLoader backed by the embedded defaults
// document.
func Loader() (config.Tree, error) {
	data, err := fs.ReadFile("defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading bundled defaults: %w", err)
	}
	var t config.Tree
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing bundled defaults: %w", err)
	}
	return t, nil
}
