package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientSummary(t *testing.T) {
	summary := InsufficientSummary("ghost topic")
	assert.Contains(t, summary.Overview, "Insufficient information")
	assert.Contains(t, summary.Overview, "ghost topic")
	assert.Empty(t, summary.KeyFindings)
}

func TestFallbackSummary(t *testing.T) {
	snap := Snapshot{
		Topic:          "fusion energy",
		Round:          3,
		RawResultCount: 12,
		Evidence: map[Category][]CategorizedInfo{
			CategoryKeyFacts: {
				{Category: CategoryKeyFacts, Content: "finding one", Relevance: 0.5},
				{Category: CategoryKeyFacts, Content: "finding two", Relevance: 0.9},
			},
			CategoryStatistics: {
				{Category: CategoryStatistics, Content: "stat one", Relevance: 0.7},
			},
		},
	}

	summary := FallbackSummary(snap)
	assert.Contains(t, summary.Overview, "12 results")
	assert.Contains(t, summary.Overview, "3 rounds")
	require.Len(t, summary.KeyFindings, 3)
	// Within a category the higher-relevance excerpt surfaces first
	assert.Equal(t, "finding two", summary.KeyFindings[0])
	assert.Len(t, summary.CategorySections, 2)
}

func TestFallbackSummaryEmptyStore(t *testing.T) {
	summary := FallbackSummary(Snapshot{Topic: "empty topic"})
	assert.Contains(t, summary.Overview, "Insufficient information")
}

func TestLimitations(t *testing.T) {
	t.Run("zero sources", func(t *testing.T) {
		out := Limitations(Snapshot{}, SufficiencyEvaluation{})
		require.NotEmpty(t, out)
		assert.Contains(t, out[0], "no sources")
	})

	t.Run("missing info and disagreement", func(t *testing.T) {
		out := Limitations(
			Snapshot{RawResultCount: 20},
			SufficiencyEvaluation{
				MissingCriticalInfo: []string{"pricing"},
				Confidence:          0.35,
				MinRequirementsMet:  true,
			},
		)
		assert.Contains(t, out, "missing: pricing")
		assert.Len(t, out, 2)
	})

	t.Run("healthy run has none", func(t *testing.T) {
		out := Limitations(
			Snapshot{RawResultCount: 20},
			SufficiencyEvaluation{Confidence: 0.9, MinRequirementsMet: true},
		)
		assert.Empty(t, out)
	})
}
