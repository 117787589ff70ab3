package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/edisonhq/edison/internal/config"
)

// Vars carries the built-in and caller-supplied substitution values for
// stage 6 (spec.md §4.G step 6).
type Vars struct {
	ProjectRoot     string
	ProjectName     string
	ProjectEdisonDir string
	Timestamp       time.Time
	Version         string
	SourceLayers    []string
	OutputPath      string
	Name            string
	ContentType     string
}

// FuncRegistry resolves `{{fn:<name> arg1 arg2}}` calls (spec.md §4.G step
//5: "user-extensible ... callables returning strings"). Layer order
// mirrors handler loading (internal/handler.Registries): later Register
// calls for the same name override earlier ones.
type FuncRegistry struct {
	fns map[string]func(args []string) (string, error)
}

func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{fns: map[string]func(args []string) (string, error){}}
}

func (r *FuncRegistry) Register(name string, fn func(args []string) (string, error)) {
	r.fns[name] = fn
}

// Resolver resolves `{{include:path}}` / `{{include-section:path#name}}`
// targets against project → active packs → bundled, in that order (spec.md
// §4.G step 2).
type Resolver struct {
	SearchDirs []string // project first, then packs, then bundled
}

func (r *Resolver) resolve(relPath string) (string, error) {
	for _, dir := range r.SearchDirs {
		full := filepath.Join(dir, relPath)
		if data, err := os.ReadFile(full); err == nil {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("include target not found in any layer: %s", relPath)
}

func (r *Resolver) resolveSection(relPath, section string) (string, error) {
	raw, err := r.resolve(relPath)
	if err != nil {
		return "", err
	}
	doc := ParseSections(raw)
	body, ok := doc.Sections[section]
	if !ok {
		return "", fmt.Errorf("include-section target %s has no section %q", relPath, section)
	}
	return body, nil
}

var (
	includeFileRe    = regexp.MustCompile(`\{\{include:([^}#]+)\}\}`)
	includeSectionRe = regexp.MustCompile(`\{\{include-section:([^}#]+)#([^}]+)\}\}`)
	includeIfRe      = regexp.MustCompile(`\{\{include-if:([^:}]+):([^}]+)\}\}`)
	ifBlockRe        = regexp.MustCompile(`(?s)\{\{if:([^}]+)\}\}(.*?)(?:\{\{else\}\}(.*?))?\{\{/if\}\}`)
	eachTokenRe      = regexp.MustCompile(`(?s)\{\{#each ([a-zA-Z0-9_.]+)\}\}|\{\{/each\}\}`)
	fnCallRe         = regexp.MustCompile(`\{\{fn:(\S+)((?:\s+\S+)*)\}\}`)
	referenceRe      = regexp.MustCompile(`\{\{reference-section:([^}#]+)#([^}|]+)\|([^}]+)\}\}`)
	leftoverMarkerRe = regexp.MustCompile(`\{\{[^}]*\}\}`)
	sectionStripRe   = regexp.MustCompile(`<!--\s*/?(?:SECTION|EXTEND)[^>]*-->`)
)

// Pipeline runs the eight-stage template pipeline over already
// section/extend-merged source text (spec.md §4.G; stage 1 happens upstream
// in MergeSectioned/MergeConcatenated/MergeJSON).
type Pipeline struct {
	Resolver *Resolver
	Funcs    *FuncRegistry
	Config   *config.Config
	Vars     Vars
	Loop     map[string][]map[string]any // data source for {{#each <key>}}
	Packs    ActivePacks
}

// Run executes stages 2-8 in strict order and returns the rendered output.
func (p *Pipeline) Run(source string) (string, error) {
	text := source

	var err error
	text, err = p.expandIncludes(text)
	if err != nil {
		return "", fmt.Errorf("stage 2 (includes): %w", err)
	}

	text, err = p.expandConditionals(text)
	if err != nil {
		return "", fmt.Errorf("stage 3 (conditionals): %w", err)
	}

	text, err = p.expandLoops(text)
	if err != nil {
		return "", fmt.Errorf("stage 4 (loops): %w", err)
	}

	text, err = p.expandFunctions(text)
	if err != nil {
		return "", fmt.Errorf("stage 5 (functions): %w", err)
	}

	text = p.substituteVariables(text)

	text = p.expandReferences(text)

	text, err = p.validateFinal(text)
	if err != nil {
		return "", fmt.Errorf("stage 8 (validation): %w", err)
	}

	return text, nil
}

// expandIncludes is stage 2. Missing include targets are fatal (spec.md
// §4.G step 2 "Missing target is fatal"). include-if targets are handled
// here too since they combine inclusion with the stage-3 expression
// grammar, but are only materialized if the guarding expression is true —
// resolved once expressions are evaluable, i.e. within this same pass since
// expression evaluation has no dependency on earlier stages.
func (p *Pipeline) expandIncludes(text string) (string, error) {
	var outerErr error
	text = includeSectionRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := includeSectionRe.FindStringSubmatch(m)
		body, err := p.Resolver.resolveSection(strings.TrimSpace(sub[1]), strings.TrimSpace(sub[2]))
		if err != nil {
			outerErr = err
			return ""
		}
		return body
	})
	if outerErr != nil {
		return "", outerErr
	}
	text = includeFileRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := includeFileRe.FindStringSubmatch(m)
		body, err := p.Resolver.resolve(strings.TrimSpace(sub[1]))
		if err != nil {
			outerErr = err
			return ""
		}
		return body
	})
	if outerErr != nil {
		return "", outerErr
	}
	text = includeIfRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := includeIfRe.FindStringSubmatch(m)
		ok, err := p.evalExpr(strings.TrimSpace(sub[1]))
		if err != nil {
			outerErr = err
			return ""
		}
		if !ok {
			return ""
		}
		body, err := p.Resolver.resolve(strings.TrimSpace(sub[2]))
		if err != nil {
			outerErr = err
			return ""
		}
		return body
	})
	return text, outerErr
}

// expandConditionals is stage 3.
func (p *Pipeline) expandConditionals(text string) (string, error) {
	var outerErr error
	// Each pass pairs every {{if:}} with the nearest following {{/if}} and
	// the loop repeats while an if-block remains (at most 64 passes), so
	// blocks exposed by a previous pass are expanded too. Nested if-blocks
	// are not paired innermost-first: an outer {{if:}} closes at the inner
	// block's {{/if}}.
	for i := 0; i < 64; i++ {
		if !ifBlockRe.MatchString(text) {
			break
		}
		text = ifBlockRe.ReplaceAllStringFunc(text, func(m string) string {
			sub := ifBlockRe.FindStringSubmatch(m)
			ok, err := p.evalExpr(strings.TrimSpace(sub[1]))
			if err != nil {
				outerErr = err
				return ""
			}
			if ok {
				return sub[2]
			}
			return sub[3]
		})
		if outerErr != nil {
			return "", outerErr
		}
	}
	return text, nil
}

// expandLoops is stage 4. Nested {{#each}} is paired with a stack rather
// than a single non-greedy regex: a flat `(.*?)` body capture pairs an
// outer open tag with the first {{/each}} it sees, which for nested loops
// is the INNER close tag, leaving the outer's {{/each}} dangling. Pairing
// tokens with a stack finds the true innermost block — the one whose
// {{/each}} closes the most recently opened, still-unclosed {{#each}} — and
// expands it first, so an outer loop's `this` is correctly shadowed inside
// an inner one.
func (p *Pipeline) expandLoops(text string) (string, error) {
	for i := 0; i < 64; i++ {
		block, found := innermostEachBlock(text)
		if !found {
			break
		}
		rendered, err := p.renderEachBlock(block.key, block.body)
		if err != nil {
			return "", err
		}
		text = text[:block.start] + rendered + text[block.end:]
	}
	return text, nil
}

// eachBlock is one matched {{#each key}}...{{/each}} span: body is the
// text between the open and close tags; start/end bound the whole span
// (open tag through close tag) in the original text.
type eachBlock struct {
	key        string
	body       string
	start, end int
}

// innermostEachBlock scans {{#each}}/{{/each}} tokens left to right,
// pushing each open tag and popping on a close tag. The first close tag
// encountered always pairs with the top of the stack — the innermost
// still-open block — giving a correct pairing regardless of nesting depth.
func innermostEachBlock(text string) (eachBlock, bool) {
	type open struct {
		key       string
		tagStart  int
		bodyStart int
	}
	var stack []open
	for _, m := range eachTokenRe.FindAllStringSubmatchIndex(text, -1) {
		if m[2] != -1 {
			stack = append(stack, open{key: text[m[2]:m[3]], tagStart: m[0], bodyStart: m[1]})
			continue
		}
		if len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return eachBlock{key: top.key, body: text[top.bodyStart:m[0]], start: top.tagStart, end: m[1]}, true
	}
	return eachBlock{}, false
}

func (p *Pipeline) renderEachBlock(key, body string) (string, error) {
	items, ok := p.Loop[key]
	if !ok {
		return "", fmt.Errorf("{{#each %s}}: no loop data bound for key", key)
	}
	var sb strings.Builder
	for idx, item := range items {
		rendered := body
		rendered = substituteThis(rendered, item)
		rendered = strings.ReplaceAll(rendered, "{{@index}}", fmt.Sprintf("%d", idx))
		last := "false"
		if idx == len(items)-1 {
			last = "true"
		}
		rendered = strings.ReplaceAll(rendered, "{{@last}}", last)
		sb.WriteString(rendered)
	}
	return sb.String(), nil
}

var thisFieldRe = regexp.MustCompile(`\{\{this\.([a-zA-Z0-9_]+)\}\}`)

func substituteThis(body string, item map[string]any) string {
	return thisFieldRe.ReplaceAllStringFunc(body, func(m string) string {
		sub := thisFieldRe.FindStringSubmatch(m)
		v, ok := item[sub[1]]
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}

// expandFunctions is stage 5.
func (p *Pipeline) expandFunctions(text string) (string, error) {
	var outerErr error
	text = fnCallRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := fnCallRe.FindStringSubmatch(m)
		name := sub[1]
		var args []string
		for _, a := range strings.Fields(sub[2]) {
			args = append(args, a)
		}
		fn, ok := p.Funcs.fns[name]
		if !ok {
			outerErr = fmt.Errorf("unresolved template function: %q", name)
			return ""
		}
		out, err := fn(args)
		if err != nil {
			outerErr = fmt.Errorf("template function %q: %w", name, err)
			return ""
		}
		return out
	})
	return text, outerErr
}

// substituteVariables is stage 6.
func (p *Pipeline) substituteVariables(text string) string {
	replacer := strings.NewReplacer(
		"{{PROJECT_ROOT}}", p.Vars.ProjectRoot,
		"{{PROJECT_EDISON_DIR}}", p.Vars.ProjectEdisonDir,
		"{{timestamp}}", p.Vars.Timestamp.UTC().Format(time.RFC3339),
		"{{generated_date}}", p.Vars.Timestamp.UTC().Format("2006-01-02"),
		"{{version}}", p.Vars.Version,
		"{{source_layers}}", strings.Join(p.Vars.SourceLayers, ", "),
		"{{output_path}}", p.Vars.OutputPath,
		"{{name}}", p.Vars.Name,
		"{{content_type}}", p.Vars.ContentType,
		"{{project.name}}", p.Vars.ProjectName,
	)
	text = replacer.Replace(text)

	text = regexp.MustCompile(`\{\{config\.([a-zA-Z0-9_.]+)\}\}`).ReplaceAllStringFunc(text, func(m string) string {
		path := m[len("{{config.") : len(m)-2]
		if p.Config == nil {
			return ""
		}
		v, ok := config.GetPath(p.Config.Raw, path)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
	return text
}

// expandReferences is stage 7: produces an on-demand pointer, not an
// embedded body (spec.md §4.G step 7).
func (p *Pipeline) expandReferences(text string) string {
	return referenceRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := referenceRe.FindStringSubmatch(m)
		path, section, purpose := sub[1], sub[2], sub[3]
		return fmt.Sprintf("[see %s#%s — %s]", path, section, purpose)
	})
}

// validateFinal is stage 8: any remaining {{...}} marker is fatal; leftover
// section markers are stripped.
func (p *Pipeline) validateFinal(text string) (string, error) {
	text = sectionStripRe.ReplaceAllString(text, "")
	if m := leftoverMarkerRe.FindString(text); m != "" {
		return "", fmt.Errorf("unresolved template marker: %s", m)
	}
	return text, nil
}
