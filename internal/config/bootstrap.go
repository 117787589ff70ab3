// Package config implements Edison's layered configuration loader
// (spec.md §4.B): an ordered stack of sources merged into one immutable
// tree, exposed through lazy typed domain accessors.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Bootstrap holds the small set of process-level settings needed before the
// layered domain tree can even be located (which project root to scan, how
// to log while doing it). This mirrors the teacher's flat
// internal/config/config.go almost verbatim — it is a different, narrower
// concern than the layered domain tree below.
type Bootstrap struct {
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig names the running process for logs and generated headers.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// LogConfig controls the zap logger level (internal/logging).
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadBootstrap reads the process bootstrap file, if any, layering
// EDISON_LOG_LEVEL over it. A missing bootstrap file is not an error —
// spec.md §4.B only requires the *bundled defaults* layer to be mandatory;
// the bootstrap file is an operator convenience on top of that.
func LoadBootstrap(path string) (*Bootstrap, error) {
	b := &Bootstrap{
		Server: ServerConfig{Name: "edison", Version: "dev"},
		Log:    LogConfig{Level: "info"},
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, b); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading bootstrap file %s: %w", path, err)
			}
		}
	}
	if v := os.Getenv("EDISON_LOG_LEVEL"); v != "" {
		b.Log.Level = v
	}
	return b, nil
}
