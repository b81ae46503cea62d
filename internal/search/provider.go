// Package search defines the web-search capability the research engine
// consumes and an HTTP client for a search service. The engine never talks to
// a search backend directly; it sees only the Provider interface.
package search

import (
	"context"

	"github.com/orbiterhq/deepresearch/internal/research"
)

// Options narrows a single search call.
type Options struct {
	DateRestriction string `json:"date_restriction,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`
}

// Provider issues one query against a search backend. Implementations own
// their transport-level timeouts and rate limiting.
type Provider interface {
	// Search returns normalized result items for a query. An empty slice
	// with nil error is a valid outcome.
	Search(ctx context.Context, query string, opts Options) ([]research.SearchResultItem, error)
	// Configured reports whether the provider has working credentials. An
	// unconfigured provider is a valid state; callers degrade to empty
	// results instead of failing.
	Configured() bool
}

// NoopProvider is the unconfigured state: every search succeeds with zero
// results so the control loop can still terminate via stall detection.
type NoopProvider struct{}

func (NoopProvider) Search(context.Context, string, Options) ([]research.SearchResultItem, error) {
	return nil, nil
}

func (NoopProvider) Configured() bool { return false }
