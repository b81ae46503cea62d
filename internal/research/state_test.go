package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	return NewState("quantum computing", "state of quantum computing", nil, Limits{
		MaxRounds:          5,
		EarlyStopThreshold: 85,
		MinCoverageScore:   70,
	}, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
	}{
		{"lowercases host", "https://Example.COM/Path", "https://example.com/Path"},
		{"strips www", "https://www.example.com/a", "https://example.com/a"},
		{"strips trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps query", "https://example.com/a?x=1", "https://example.com/a?x=1"},
		{"bare host", "https://example.com/", "https://example.com"},
		{"scheme-less strips www", "www.example.com/a", "example.com/a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.out, NormalizeURL(tc.in))
		})
	}

	// All variants must collapse to the same key
	assert.Equal(t, NormalizeURL("https://www.Example.com/a/"), NormalizeURL("https://example.com/a"))
	assert.Equal(t, NormalizeURL("www.example.com/a"), NormalizeURL("example.com/a"))
}

func TestAddRawResultsDeduplicates(t *testing.T) {
	s := newTestState(t)

	added := s.AddRawResults([]SearchResultItem{
		{ID: "1", URL: "https://example.com/a", Title: "A"},
		{ID: "2", URL: "https://www.example.com/a/", Title: "A again"},
		{ID: "3", URL: "https://example.com/b", Title: "B"},
	})
	assert.Len(t, added, 2)
	assert.Equal(t, "1", added[0].ID)
	assert.Equal(t, "3", added[1].ID)
	assert.Equal(t, 2, s.RawResultCount())

	// Idempotent: re-inserting the same normalized URL changes nothing
	added = s.AddRawResults([]SearchResultItem{{ID: "4", URL: "https://EXAMPLE.com/a"}})
	assert.Empty(t, added)
	assert.Equal(t, 2, s.RawResultCount())
}

func TestAddCategorizedInfoSuppressesNearDuplicates(t *testing.T) {
	s := newTestState(t)

	first := CategorizedInfo{
		Category: CategoryKeyFacts,
		Content:  "quantum processors reached one thousand qubits during recent hardware trials",
	}
	require.True(t, s.AddCategorizedInfo(first))

	// Same wording, one extra filler word: Jaccard above threshold
	nearDup := CategorizedInfo{
		Category: CategoryKeyFacts,
		Content:  "quantum processors reached one thousand qubits during recent major hardware trials",
	}
	assert.False(t, s.AddCategorizedInfo(nearDup))
	assert.Equal(t, 1, s.CategorizedCount())

	// Same content in a different category is allowed
	otherCat := nearDup
	otherCat.Category = CategoryStatistics
	assert.True(t, s.AddCategorizedInfo(otherCat))

	// Genuinely different content in the same category is allowed
	distinct := CategorizedInfo{
		Category: CategoryKeyFacts,
		Content:  "error correction milestones remain the dominant obstacle for practical machines",
	}
	assert.True(t, s.AddCategorizedInfo(distinct))
}

func TestAddCategorizedInfoUnknownCategory(t *testing.T) {
	s := newTestState(t)
	require.True(t, s.AddCategorizedInfo(CategorizedInfo{Category: "bogus", Content: "some text here"}))
	snap := s.Snapshot()
	assert.Len(t, snap.Evidence[CategoryOther], 1)
}

func TestShouldStopOrdering(t *testing.T) {
	t.Run("no conditions", func(t *testing.T) {
		s := newTestState(t)
		stop, reason := s.ShouldStop()
		assert.False(t, stop)
		assert.Empty(t, reason)
	})

	t.Run("completion flag wins", func(t *testing.T) {
		s := newTestState(t)
		for i := 0; i < 5; i++ {
			s.StartRound()
		}
		s.MarkComplete(StopReasonSufficient)
		stop, reason := s.ShouldStop()
		require.True(t, stop)
		assert.Equal(t, StopReasonSufficient, reason)
	})

	t.Run("max rounds", func(t *testing.T) {
		s := newTestState(t)
		for i := 0; i < 5; i++ {
			s.StartRound()
		}
		stop, reason := s.ShouldStop()
		require.True(t, stop)
		assert.Equal(t, StopReasonMaxRounds, reason)
	})

	t.Run("early stop on scores", func(t *testing.T) {
		s := newTestState(t)
		s.StartRound()
		s.UpdateScores(90, 82)
		stop, reason := s.ShouldStop()
		require.True(t, stop)
		assert.Contains(t, reason, StopReasonEarlyScore)
	})

	t.Run("stall detection", func(t *testing.T) {
		s := newTestState(t)
		s.StartRound()
		s.RecordExplorationStep(ExplorationStep{Round: 1, NewInfoCount: 0})
		stop, _ := s.ShouldStop()
		assert.False(t, stop, "a single empty round is not a stall")

		s.StartRound()
		s.RecordExplorationStep(ExplorationStep{Round: 2, NewInfoCount: 0})
		stop, reason := s.ShouldStop()
		require.True(t, stop)
		assert.Equal(t, StopReasonStalled, reason)
	})

	t.Run("stall broken by new info", func(t *testing.T) {
		s := newTestState(t)
		s.RecordExplorationStep(ExplorationStep{Round: 1, NewInfoCount: 0})
		s.RecordExplorationStep(ExplorationStep{Round: 2, NewInfoCount: 3})
		stop, _ := s.ShouldStop()
		assert.False(t, stop)
	})
}

func TestShouldStopIsRepeatSafeAndMonotonic(t *testing.T) {
	s := newTestState(t)
	s.StartRound()
	s.MarkComplete("done")

	for i := 0; i < 3; i++ {
		stop, reason := s.ShouldStop()
		require.True(t, stop)
		assert.Equal(t, "done", reason)
	}

	// A later MarkComplete cannot overwrite the first reason
	s.MarkComplete("other reason")
	_, reason := s.ShouldStop()
	assert.Equal(t, "done", reason)
}

func TestSnapshotIsDetached(t *testing.T) {
	s := newTestState(t)
	s.StartRound()
	s.RecordQueries([]string{"q1"})
	require.True(t, s.AddCategorizedInfo(CategorizedInfo{Category: CategoryBackground, Content: "origin story of the field"}))

	snap := s.Snapshot()
	snap.ExecutedQueries[0] = "mutated"
	snap.Evidence[CategoryBackground][0].Content = "mutated"

	fresh := s.Snapshot()
	assert.Equal(t, "q1", fresh.ExecutedQueries[0])
	assert.Equal(t, "origin story of the field", fresh.Evidence[CategoryBackground][0].Content)
}

func TestHasExecutedQuery(t *testing.T) {
	s := newTestState(t)
	s.RecordQueries([]string{"Quantum Computing overview"})
	assert.True(t, s.HasExecutedQuery("quantum computing overview"))
	assert.True(t, s.HasExecutedQuery("  QUANTUM COMPUTING OVERVIEW "))
	assert.False(t, s.HasExecutedQuery("quantum computing history"))
}

func TestJaccardSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, JaccardSimilarity("alpha beta gamma", "gamma beta alpha"))
	assert.Equal(t, 0.0, JaccardSimilarity("alpha beta", "gamma delta"))
	assert.Equal(t, 1.0, JaccardSimilarity("", ""))
	assert.Equal(t, 0.0, JaccardSimilarity("alpha beta gamma", ""))

	sim := JaccardSimilarity("one two three four", "one two three five")
	assert.InDelta(t, 0.6, sim, 0.0001)
}
