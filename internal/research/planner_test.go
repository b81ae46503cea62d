package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name  string
		round int
		eval  SufficiencyEvaluation
		want  Strategy
	}{
		{"round one is broad", 1, SufficiencyEvaluation{OverallScore: 90}, StrategyBroad},
		{"round two is broad", 2, SufficiencyEvaluation{MissingCriticalInfo: []string{"x"}}, StrategyBroad},
		{"gaps drive deep", 3, SufficiencyEvaluation{MissingCriticalInfo: []string{"x"}}, StrategyDeep},
		{"strong score verifies", 3, SufficiencyEvaluation{OverallScore: 75}, StrategyVerification},
		{"otherwise comparative", 3, SufficiencyEvaluation{OverallScore: 50}, StrategyComparative},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SelectStrategy(tc.round, tc.eval))
		})
	}
}

func TestGenerateSearchPlanPriorityOrder(t *testing.T) {
	snap := Snapshot{Topic: "fusion energy", Round: 3}
	eval := SufficiencyEvaluation{
		SuggestedQueries:    []string{"fusion energy tokamak progress", "fusion energy private companies", "fusion energy third suggestion"},
		MissingCriticalInfo: []string{"commercial timeline", "cost projections", "regulation"},
	}

	plan := GenerateSearchPlan(snap, eval, "")
	require.Len(t, plan.Queries, maxQueriesPerRound)
	assert.Equal(t, StrategyDeep, plan.Strategy)

	// Suggestions first (capped at two), then gap templates (capped at two)
	assert.Equal(t, "fusion energy tokamak progress", plan.Queries[0].Query)
	assert.Equal(t, "fusion energy private companies", plan.Queries[1].Query)
	assert.Equal(t, "fusion energy commercial timeline", plan.Queries[2].Query)
	assert.Equal(t, "fusion energy cost projections", plan.Queries[3].Query)
}

func TestGenerateSearchPlanFillsWithTemplates(t *testing.T) {
	snap := Snapshot{Topic: "fusion energy", Round: 1}
	plan := GenerateSearchPlan(snap, SufficiencyEvaluation{}, "m6")

	require.Len(t, plan.Queries, 3, "broad strategy carries three templates")
	assert.Equal(t, StrategyBroad, plan.Strategy)
	assert.Equal(t, "fusion energy overview", plan.Queries[0].Query)
	for _, q := range plan.Queries {
		assert.Equal(t, "m6", q.DateRestriction)
	}
}

func TestGenerateSearchPlanDropsExecutedQueries(t *testing.T) {
	snap := Snapshot{
		Topic:           "fusion energy",
		Round:           1,
		ExecutedQueries: []string{"Fusion Energy overview", "fusion energy KEY facts"},
	}
	plan := GenerateSearchPlan(snap, SufficiencyEvaluation{}, "")

	require.Len(t, plan.Queries, 1)
	assert.Equal(t, "fusion energy latest developments", plan.Queries[0].Query)
}

func TestGenerateSearchPlanExhaustion(t *testing.T) {
	snap := Snapshot{
		Topic: "fusion energy",
		Round: 1,
		ExecutedQueries: []string{
			"fusion energy overview",
			"fusion energy key facts",
			"fusion energy latest developments",
		},
	}
	plan := GenerateSearchPlan(snap, SufficiencyEvaluation{}, "")
	assert.Empty(t, plan.Queries, "all avenues exhausted must yield an empty plan")
}

func TestGenerateSearchPlanDeduplicatesCandidates(t *testing.T) {
	snap := Snapshot{Topic: "fusion energy", Round: 3}
	eval := SufficiencyEvaluation{
		// Suggestion collides with the gap template it would generate
		SuggestedQueries:    []string{"fusion energy commercial timeline"},
		MissingCriticalInfo: []string{"commercial timeline"},
	}
	plan := GenerateSearchPlan(snap, eval, "")

	seen := map[string]bool{}
	for _, q := range plan.Queries {
		require.False(t, seen[q.Query], "duplicate candidate %q", q.Query)
		seen[q.Query] = true
	}
}
