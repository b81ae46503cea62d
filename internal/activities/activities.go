// Package activities holds the Temporal activities behind the research
// workflow: search dispatch, result classification, sufficiency judgment,
// report synthesis, event emission and report persistence. All external I/O
// lives here; the workflow only applies the returned deltas.
package activities

import (
	"go.uber.org/zap"

	"github.com/orbiterhq/deepresearch/internal/db"
	"github.com/orbiterhq/deepresearch/internal/llm"
	"github.com/orbiterhq/deepresearch/internal/search"
	"github.com/orbiterhq/deepresearch/internal/streaming"
)

// Activities bundles the injected capabilities. Search and LLM are assumed
// fallible; every activity degrades rather than propagating transport errors
// into the workflow.
type Activities struct {
	search  search.Provider
	llm     llm.Client
	events  *streaming.Manager
	reports db.ReportStore
	logger  *zap.Logger
}

// Deps are the collaborators for NewActivities. Reports may be nil
// (persistence disabled); Search may be the NoopProvider.
type Deps struct {
	Search  search.Provider
	LLM     llm.Client
	Events  *streaming.Manager
	Reports db.ReportStore
	Logger  *zap.Logger
}

// NewActivities wires the activity set.
func NewActivities(deps Deps) *Activities {
	if deps.Search == nil {
		deps.Search = search.NoopProvider{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Activities{
		search:  deps.Search,
		llm:     deps.LLM,
		events:  deps.Events,
		reports: deps.Reports,
		logger:  deps.Logger,
	}
}

// truncateStr shortens s to at most n runes. Byte slicing would split
// multi-byte runes in excerpt text.
func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
