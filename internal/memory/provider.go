// Package memory implements Edison's event-driven memory pipeline (spec.md
// §4.J): pluggable providers that search and save session insights, run
// through a fail-open pipeline so a provider outage never blocks the
// caller. The Provider interface shape follows the teacher's MCP Tool/
// Resource interfaces (internal/mcp/registry.go) — a small method set named
// after the verb it performs, discovered through a registry rather than a
// switch statement.
package memory

import "context"

// Provider is one pluggable memory backend (spec.md §4.J "Providers
// implement search(query, limit) → text and save(kind, content) → void").
type Provider interface {
	// Name identifies the provider for registry lookup and for attributing
	// pipeline log lines and error notes.
	Name() string

	// Search returns freeform text relevant to query, bounded to limit
	// results. Implementations may interpret "result" however suits their
	// backend (files, rows, vectors); the pipeline only consumes the text.
	Search(ctx context.Context, query string, limit int) (string, error)

	// Save persists content under the given kind (e.g. "session-insight").
	Save(ctx context.Context, kind string, content string) error
}

// StructuredSaver is an optional extension a Provider may implement for
// saving pre-shaped records instead of freeform text (spec.md §4.J
// "structured-save is optional").
type StructuredSaver interface {
	SaveStructured(ctx context.Context, kind string, record map[string]any) error
}

// Indexer is an optional extension a Provider may implement to refresh a
// search index after a batch of saves (used by the provider-index step).
type Indexer interface {
	Index(ctx context.Context) error
}

// Registry holds named providers (spec.md §4.J step arguments reference a
// provider by name).
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds a provider, keyed by its Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Lookup returns the named provider, or false if unregistered.
func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
