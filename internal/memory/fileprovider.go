package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edisonhq/edison/internal/pathio"
)

// FileProvider is the default memory provider (spec.md §4.J "A file-backed
// default provider writes to <project>/memory/ so that even absent
// external providers the pipeline is functional"). Saves land one file per
// entry under Dir/<kind>/, atomically; search is a naive substring scan —
// adequate for the small per-project corpora this pipeline accumulates, and
// requiring no external index.
type FileProvider struct {
	Dir   string
	Clock pathio.Clock
}

// NewFileProvider builds a FileProvider rooted at dir (<project>/memory/).
func NewFileProvider(dir string, clock pathio.Clock) *FileProvider {
	if clock == nil {
		clock = pathio.SystemClock{}
	}
	return &FileProvider{Dir: dir, Clock: clock}
}

func (p *FileProvider) Name() string { return "file" }

// Save writes content to Dir/<kind>/<timestamp>-<hash>.md.
func (p *FileProvider) Save(_ context.Context, kind string, content string) error {
	dir := filepath.Join(p.Dir, sanitizeKind(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating memory dir: %w", err)
	}
	sum := sha256.Sum256([]byte(content))
	stamp := strings.NewReplacer(":", "-").Replace(pathio.FormatUTC(p.Clock.Now()))
	name := fmt.Sprintf("%s-%s.md", stamp, hex.EncodeToString(sum[:4]))
	return pathio.WriteAtomic(filepath.Join(dir, name), []byte(content), 0o644)
}

// Search scans every file under Dir for query, scoring by occurrence count,
// and returns the top-scoring files' contents joined with blank lines. Ties
// are ordered by file path, descending, which puts newer saves of the same
// kind first.
func (p *FileProvider) Search(_ context.Context, query string, limit int) (string, error) {
	if limit <= 0 {
		limit = 5
	}
	type hit struct {
		path  string
		score int
		text  string
	}
	var hits []hit
	query = strings.ToLower(query)

	err := filepath.WalkDir(p.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		text := string(data)
		score := strings.Count(strings.ToLower(text), query)
		if query == "" || score > 0 {
			hits = append(hits, hit{path: path, score: score, text: text})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching memory: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].path > hits[j].path
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.text
	}
	return strings.Join(parts, "\n\n"), nil
}

func sanitizeKind(kind string) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return "misc"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '-'
		}
		return r
	}, kind)
}
