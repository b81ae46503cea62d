package research

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyByKeywords(t *testing.T) {
	cases := []struct {
		name string
		item SearchResultItem
		want Category
	}{
		{
			name: "statistics",
			item: SearchResultItem{Title: "Market data", Content: "survey shows 40 percent growth rate with data from 3 million users"},
			want: CategoryStatistics,
		},
		{
			name: "latest updates",
			item: SearchResultItem{Title: "Breaking", Content: "the company announced a new update today"},
			want: CategoryLatestUpdates,
		},
		{
			name: "background",
			item: SearchResultItem{Title: "History", Content: "founded in 1998, the origin of the project gives useful background and context"},
			want: CategoryBackground,
		},
		{
			name: "no keywords falls back to other",
			item: SearchResultItem{Title: "zzzz", Content: "qwerty asdf zxcv"},
			want: CategoryOther,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyByKeywords(tc.item)
			assert.Equal(t, tc.want, got.Category)
		})
	}
}

func TestClassifyByKeywordsRelevance(t *testing.T) {
	unmatched := ClassifyByKeywords(SearchResultItem{Title: "zzzz", Content: "qwerty asdf"})
	assert.Equal(t, fallbackRelevance, unmatched.Relevance)

	matched := ClassifyByKeywords(SearchResultItem{
		Title:   "Stats",
		Content: "survey data shows growth rate of 10 percent, roughly 2 million",
	})
	assert.Greater(t, matched.Relevance, fallbackRelevance)
	assert.LessOrEqual(t, matched.Relevance, 0.9)
}

func TestClassifyByKeywordsNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		got := ClassifyByKeywords(SearchResultItem{})
		assert.Equal(t, CategoryOther, got.Category)
	})
}

func TestClassifyByKeywordsPrefersSnippet(t *testing.T) {
	got := ClassifyByKeywords(SearchResultItem{
		Title:   "T",
		Content: "long body content",
		Snippet: "short snippet",
	})
	assert.Equal(t, "short snippet", got.Content)
}

func TestClassifyByKeywordsTruncatesOnRuneBoundary(t *testing.T) {
	got := ClassifyByKeywords(SearchResultItem{
		Title:   "multibyte",
		Content: strings.Repeat("研", 600),
	})
	assert.True(t, utf8.ValidString(got.Content))
	assert.Equal(t, 500, utf8.RuneCountInString(got.Content))
}

func TestLoadKeywordConfig(t *testing.T) {
	defer ResetKeywordConfig()

	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	yaml := `
classification:
  keywords:
    statistics: ["flurb"]
    not_a_category: ["ignored"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	require.NoError(t, LoadKeywordConfig(path))

	got := ClassifyByKeywords(SearchResultItem{Title: "x", Content: "a flurb appeared"})
	assert.Equal(t, CategoryStatistics, got.Category)

	// Categories not mentioned keep their defaults
	got = ClassifyByKeywords(SearchResultItem{Title: "Breaking", Content: "announced a new update today"})
	assert.Equal(t, CategoryLatestUpdates, got.Category)
}

func TestLoadKeywordConfigMissingFile(t *testing.T) {
	assert.Error(t, LoadKeywordConfig("/does/not/exist.yaml"))
}
