package compose

import (
	"crypto/sha256"
	"strings"

	"github.com/edisonhq/edison/internal/config"
)

// Dedup removes near-duplicate blocks from a concatenate-with-dedup document
// (spec.md §4.G "concatenated ... then shingle-dedup removes repeated
// blocks"). Blocks are paragraphs (blank-line separated); a block is a
// duplicate of an earlier one if the Jaccard similarity of their
// word-shingle sets meets cfg.Threshold, once both blocks have at least
// cfg.MinShingles shingles (shorter blocks are never deduped — not enough
// signal to judge similarity).
func Dedup(text string, cfg config.DedupConfig) string {
	blocks := strings.Split(text, "\n\n")
	var kept []string
	var keptShingles []map[string]bool

	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		shingles := shingleSet(trimmed, cfg.ShingleSize)
		if len(shingles) < cfg.MinShingles {
			kept = append(kept, block)
			keptShingles = append(keptShingles, shingles)
			continue
		}
		duplicate := false
		for _, prior := range keptShingles {
			if len(prior) < cfg.MinShingles {
				continue
			}
			if jaccard(shingles, prior) >= cfg.Threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, block)
			keptShingles = append(keptShingles, shingles)
		}
	}
	return strings.Join(kept, "\n\n")
}

// shingleSet builds the set of k-word shingle hashes for text.
func shingleSet(text string, k int) map[string]bool {
	words := strings.Fields(text)
	set := map[string]bool{}
	if k <= 0 || len(words) < k {
		if len(words) > 0 {
			set[shingleHash(strings.Join(words, " "))] = true
		}
		return set
	}
	for i := 0; i+k <= len(words); i++ {
		set[shingleHash(strings.Join(words[i:i+k], " "))] = true
	}
	return set
}

func shingleHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return string(sum[:8])
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
