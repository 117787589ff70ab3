// Package compose implements the composition engine (spec.md §4.G): it
// merges layered source documents by content-type strategy, then runs an
// eight-stage template pipeline over the merged result. It is grounded on
// the corpus's markdown-directive composition idiom —
// githubnext-gh-aw/pkg/parser's `@include`-expansion functions
// (ExpandIncludesWithManifest et al., called from pkg/workflow/compiler.go)
// — generalized from gh-aw's single `@include` directive into the richer
// SECTION/EXTEND/include/conditional/loop/function/variable/reference
// grammar spec.md §4.G defines. No markdown composition library in the
// corpus covers this bespoke grammar, so the pipeline stages are hand-built
// with regexp/strings, the same tool gh-aw itself reaches for.
package compose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	sectionOpenRe = regexp.MustCompile(`(?s)<!--\s*SECTION:\s*(\S+)\s*-->(.*?)<!--\s*/SECTION:\s*\1\s*-->`)
	extendOpenRe  = regexp.MustCompile(`(?s)<!--\s*EXTEND:\s*(\S+)\s*-->(.*?)<!--\s*/EXTEND\s*-->`)
)

// Document is one layer's parsed content: named sections in source order,
// plus any content outside a section (preserved for section-less types).
type Document struct {
	Sections     map[string]string
	SectionOrder []string
	Preamble     string // content before the first SECTION marker
}

// ParseSections extracts SECTION blocks from raw source text.
func ParseSections(raw string) Document {
	doc := Document{Sections: map[string]string{}}
	firstIdx := sectionOpenRe.FindStringIndex(raw)
	if firstIdx == nil {
		doc.Preamble = raw
		return doc
	}
	doc.Preamble = raw[:firstIdx[0]]
	for _, m := range sectionOpenRe.FindAllStringSubmatch(raw, -1) {
		name, body := m[1], m[2]
		if _, exists := doc.Sections[name]; !exists {
			doc.SectionOrder = append(doc.SectionOrder, name)
		}
		doc.Sections[name] = body
	}
	return doc
}

// ParseExtends extracts EXTEND blocks from a higher-precedence layer's raw
// text, keyed by the section name being extended.
func ParseExtends(raw string) map[string][]string {
	extends := map[string][]string{}
	for _, m := range extendOpenRe.FindAllStringSubmatch(raw, -1) {
		name, body := m[1], m[2]
		extends[name] = append(extends[name], body)
	}
	return extends
}

// MergeSectioned implements the section-merge strategy (spec.md §4.G
// "sources are merged by named sections and pack extensions"): base layers
// are parsed for SECTION blocks in layer order (later layers overriding a
// same-named section from an earlier one), then every layer's EXTEND blocks
// are appended to their target section in layer order. Pack overlays SHOULD
// only use EXTEND but nothing here enforces that — same as spec.md's own
// phrasing ("SHOULD").
func MergeSectioned(layers []string) (string, error) {
	merged := Document{Sections: map[string]string{}}
	var allExtends []map[string][]string

	for _, raw := range layers {
		doc := ParseSections(raw)
		for _, name := range doc.SectionOrder {
			if _, exists := merged.Sections[name]; !exists {
				merged.SectionOrder = append(merged.SectionOrder, name)
			}
			merged.Sections[name] = doc.Sections[name]
		}
		if doc.Preamble != "" && merged.Preamble == "" {
			merged.Preamble = doc.Preamble
		}
		allExtends = append(allExtends, ParseExtends(raw))
	}

	for _, extends := range allExtends {
		for name, bodies := range extends {
			if _, ok := merged.Sections[name]; !ok {
				return "", fmt.Errorf("EXTEND references unknown section %q", name)
			}
			for _, b := range bodies {
				merged.Sections[name] += b
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(merged.Preamble)
	for _, name := range merged.SectionOrder {
		sb.WriteString(fmt.Sprintf("<!-- SECTION: %s -->", name))
		sb.WriteString(merged.Sections[name])
		sb.WriteString(fmt.Sprintf("<!-- /SECTION: %s -->", name))
	}
	return sb.String(), nil
}

// MergeConcatenated implements the concatenate-with-dedup strategy (spec.md
// §4.G, used for guidelines): same-named files across layers concatenate in
// layer order. Shingle-dedup is applied separately by Dedup.
func MergeConcatenated(layers []string) string {
	return strings.Join(layers, "\n\n")
}

// MergeJSON implements the JSON-merge strategy (spec.md §4.G, used for
// schemas): deep merge with later layers winning scalars, sequences
// deep-merged by identifier key when every element is a map carrying one,
// otherwise replaced wholesale.
func MergeJSON(layers []map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		out = mergeJSONValue(out, layer).(map[string]any)
	}
	return out
}

func mergeJSONValue(dst, src any) any {
	srcMap, srcIsMap := src.(map[string]any)
	dstMap, dstIsMap := dst.(map[string]any)
	if srcIsMap {
		if !dstIsMap {
			dstMap = map[string]any{}
		}
		merged := make(map[string]any, len(dstMap))
		for k, v := range dstMap {
			merged[k] = v
		}
		for k, v := range srcMap {
			if existing, ok := merged[k]; ok {
				merged[k] = mergeJSONValue(existing, v)
			} else {
				merged[k] = v
			}
		}
		return merged
	}
	srcSeq, srcIsSeq := src.([]any)
	dstSeq, dstIsSeq := dst.([]any)
	if srcIsSeq && dstIsSeq {
		if merged, ok := mergeJSONSequenceByID(dstSeq, srcSeq); ok {
			return merged
		}
	}
	return src
}

// mergeJSONSequenceByID merges two sequences keyed by an "id" field present
// on every element of both; returns ok=false if either sequence has an
// element without that key, signalling the caller should replace wholesale.
func mergeJSONSequenceByID(dst, src []any) ([]any, bool) {
	index := func(seq []any) (map[string]map[string]any, []string, bool) {
		m := map[string]map[string]any{}
		var order []string
		for _, item := range seq {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, nil, false
			}
			id, ok := obj["id"].(string)
			if !ok {
				return nil, nil, false
			}
			if _, exists := m[id]; !exists {
				order = append(order, id)
			}
			m[id] = obj
		}
		return m, order, true
	}
	dstIdx, dstOrder, ok1 := index(dst)
	srcIdx, srcOrder, ok2 := index(src)
	if !ok1 || !ok2 {
		return nil, false
	}
	merged := map[string]map[string]any{}
	var order []string
	for _, id := range dstOrder {
		merged[id] = dstIdx[id]
		order = append(order, id)
	}
	for _, id := range srcOrder {
		if existing, ok := merged[id]; ok {
			merged[id] = mergeJSONValue(existing, srcIdx[id]).(map[string]any)
		} else {
			merged[id] = srcIdx[id]
			order = append(order, id)
		}
	}
	sort.Strings(order)
	out := make([]any, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out, true
}
