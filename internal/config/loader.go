package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
)

// pack is a discovered pack directory's manifest plus its parsed config
// layer, used to compute pack activation order (spec.md §4.B "active packs
// (in topological order of their declared dependencies)").
type pack struct {
	name      string
	dependsOn []string
	tree      Tree
}

// Paths resolves the on-disk layout described in spec.md §6.
type Paths struct {
	ProjectRoot string
	ConfigDir   string // P, default ".edison"
	PMDir       string // PM, default ".project"
}

// DefaultPaths returns the standard layout rooted at projectRoot.
func DefaultPaths(projectRoot string) Paths {
	return Paths{
		ProjectRoot: projectRoot,
		ConfigDir:   filepath.Join(projectRoot, ".edison"),
		PMDir:       filepath.Join(projectRoot, ".project"),
	}
}

// BundledDefaultsLoader supplies the mandatory lowest-precedence layer.
// Production code backs it with an embed.FS of shipped defaults; tests can
// substitute an in-memory tree.
type BundledDefaultsLoader func() (Tree, error)

// Load assembles the full layer stack in spec.md §4.B precedence order and
// returns a ready-to-use *Config. bundled supplies the mandatory defaults
// layer; a nil bundled loader, or an error from it, fails the load
// (spec.md "Missing required file (bundled defaults) → fatal").
func Load(paths Paths, bundled BundledDefaultsLoader) (*Config, error) {
	if bundled == nil {
		return nil, fmt.Errorf("bundled defaults loader is required")
	}
	defaults, err := bundled()
	if err != nil {
		return nil, fmt.Errorf("loading bundled defaults: %w", err)
	}

	packsLayer, err := loadPackLayers(filepath.Join(paths.ConfigDir, "packs"))
	if err != nil {
		return nil, err
	}

	userLayer, err := LoadYAMLLayerDir("user", userConfigDir())
	if err != nil {
		return nil, err
	}

	projectLayer, err := LoadYAMLLayerDir("project", filepath.Join(paths.ConfigDir, "config"))
	if err != nil {
		return nil, err
	}

	localLayer, err := LoadYAMLLayerDir("project-local", filepath.Join(paths.ConfigDir, "config.local"))
	if err != nil {
		return nil, err
	}

	merged := MergeLayers(
		Layer{Name: "bundled", Tree: defaults},
		Layer{Name: "packs", Tree: packsLayer},
		userLayer,
		projectLayer,
		localLayer,
	)

	merged, err = ApplyEnv(merged, Environ())
	if err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	projectName := filepath.Base(paths.ProjectRoot)
	placeholders := PlaceholderSet{
		"PROJECT_ROOT":       paths.ProjectRoot,
		"PROJECT_NAME":       projectName,
		"PROJECT_CONFIG_DIR": paths.ConfigDir,
		"PROJECT_EDISON_DIR": paths.ConfigDir,
	}
	merged, err = ResolvePlaceholders(merged, placeholders)
	if err != nil {
		return nil, fmt.Errorf("resolving placeholders: %w", err)
	}

	return NewConfig(merged), nil
}

// loadPackLayers merges every pack directory's config.yaml in topological
// dependency order. Dependency order is approximated here by a pack's
// declared "dependsOn" list in its own pack.yaml manifest, falling back to
// lexical order for packs with no declared dependencies — a full
// topological sort is applied once all manifests are read.
func loadPackLayers(packsDir string) (Tree, error) {
	entries, err := os.ReadDir(packsDir)
	if os.IsNotExist(err) {
		return Tree{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading packs dir %s: %w", packsDir, err)
	}

	packs := make(map[string]*pack)
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		manifestPath := filepath.Join(packsDir, e.Name(), "pack.yaml")
		var manifest struct {
			DependsOn []string `yaml:"dependsOn"`
		}
		_ = LoadYAMLInto(manifestPath, &manifest) // optional; absence means no declared deps

		cfgLayer, err := LoadYAMLLayer(e.Name(), filepath.Join(packsDir, e.Name(), "config.yaml"), true)
		if err != nil {
			return nil, err
		}
		packs[e.Name()] = &pack{name: e.Name(), dependsOn: manifest.DependsOn, tree: cfgLayer.Tree}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	ordered := topoSortPacks(names, packs)

	merged := Tree{}
	for _, name := range ordered {
		merged = DeepMerge(merged, packs[name].tree)
	}
	return merged, nil
}

func topoSortPacks(names []string, packs map[string]*pack) []string {
	visited := make(map[string]bool)
	var order []string
	var visit func(string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		if p, ok := packs[n]; ok {
			for _, dep := range p.dependsOn {
				visit(dep)
			}
		}
		order = append(order, n)
	}
	for _, n := range names {
		visit(n)
	}
	return order
}

// LoadYAMLInto is a small helper for optional single-file structs (pack
// manifests) that aren't part of the merged Tree.
func LoadYAMLInto(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "edison")
	}
	return ""
}
