// Package specs embeds Edison's bundled default state-machine
// specifications (spec.md §4.E, §3 lifecycles) so a fresh install needs no
// on-disk spec files to function. Operators may still override any of the
// three by placing task.yaml/qa.yaml/session.yaml under their project's
// .edison/config directory; that precedence is the caller's concern, not
// this package's.
package specs

import (
	"embed"
	"fmt"

	"github.com/edisonhq/edison/internal/statemachine"
)

//go:embed task.yaml qa.yaml session.yaml
var fs embed.FS

// Load parses one of the embedded default specs by name ("task", "qa", or
// "session").
func Load(name string) (*statemachine.Spec, error) {
	data, err := fs.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("loading bundled %s spec: %w", name, err)
	}
	return statemachine.LoadSpecBytes(data)
}
