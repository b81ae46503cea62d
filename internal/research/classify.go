package research

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// fallbackRelevance is assigned when no keyword matched and the item lands in
// the other bucket.
const fallbackRelevance = 0.3

// defaultKeywords drives the deterministic classifier used when the LLM
// classification path fails. Lists are deliberately short; the overlap
// fraction (matches / list size) is what matters, not raw match counts.
var defaultKeywords = map[Category][]string{
	CategoryBackground:    {"history", "origin", "founded", "background", "overview", "introduction", "context"},
	CategoryKeyFacts:      {"fact", "key", "important", "significant", "core", "essential", "primary"},
	CategoryLatestUpdates: {"latest", "recent", "new", "update", "announced", "breaking", "today", "2024", "2025", "2026"},
	CategoryOpinions:      {"opinion", "believe", "argue", "critic", "view", "perspective", "think", "suggest"},
	CategoryStatistics:    {"percent", "statistics", "data", "survey", "growth", "rate", "million", "billion", "number"},
	CategoryExamples:      {"example", "case", "instance", "such", "demonstrate", "illustrate", "sample"},
	CategoryReferences:    {"source", "reference", "report", "study", "paper", "journal", "published", "according"},
}

type keywordConfig struct {
	Classification struct {
		Keywords map[string][]string `yaml:"keywords"`
	} `yaml:"classification"`
}

var (
	keywordMu    sync.RWMutex
	keywordLists = defaultKeywords
)

// LoadKeywordConfig overlays classifier keyword lists from a yaml file.
// Unknown categories are ignored; absent categories keep their defaults.
// Missing or malformed files leave the defaults untouched.
func LoadKeywordConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg keywordConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	merged := make(map[Category][]string, len(defaultKeywords))
	for cat, words := range defaultKeywords {
		merged[cat] = words
	}
	for name, words := range cfg.Classification.Keywords {
		cat := Category(name)
		if IsValidCategory(cat) && len(words) > 0 {
			merged[cat] = words
		}
	}
	keywordMu.Lock()
	keywordLists = merged
	keywordMu.Unlock()
	return nil
}

// ResetKeywordConfig restores the built-in keyword lists.
func ResetKeywordConfig() {
	keywordMu.Lock()
	keywordLists = defaultKeywords
	keywordMu.Unlock()
}

// ClassifyByKeywords assigns a category by keyword overlap: for each category
// the score is matches / keyword-list-size, highest score wins. Items that
// match nothing are filed under other with a fixed low relevance. This path
// never fails; it is the last line of defense when LLM classification breaks.
func ClassifyByKeywords(item SearchResultItem) CategorizedInfo {
	text := strings.ToLower(item.Title + " " + item.Content + " " + item.Snippet)

	keywordMu.RLock()
	lists := keywordLists
	keywordMu.RUnlock()

	best := CategoryOther
	bestScore := 0.0
	for _, cat := range Categories {
		words := lists[cat]
		if len(words) == 0 {
			continue
		}
		matches := 0
		for _, w := range words {
			if strings.Contains(text, strings.ToLower(w)) {
				matches++
			}
		}
		score := float64(matches) / float64(len(words))
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}

	relevance := fallbackRelevance
	if bestScore > 0 {
		relevance = 0.4 + bestScore*0.5
		if relevance > 0.9 {
			relevance = 0.9
		}
	}

	content := item.Snippet
	if content == "" {
		content = item.Content
	}
	if len(content) > 500 {
		if runes := []rune(content); len(runes) > 500 {
			content = string(runes[:500])
		}
	}

	return CategorizedInfo{
		Category:    best,
		Content:     content,
		SourceTitle: item.Title,
		SourceURL:   item.URL,
		Relevance:   relevance,
	}
}
