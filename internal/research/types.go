package research

import "time"

// Category is one of the fixed information categories evidence is filed under.
type Category string

const (
	CategoryBackground    Category = "background"
	CategoryKeyFacts      Category = "key_facts"
	CategoryLatestUpdates Category = "latest_updates"
	CategoryOpinions      Category = "opinions"
	CategoryStatistics    Category = "statistics"
	CategoryExamples      Category = "examples"
	CategoryReferences    Category = "references"
	CategoryOther         Category = "other"
)

// Categories lists every category in stable order. Scoring iterates this
// slice, never the evidence map, so results are deterministic.
var Categories = []Category{
	CategoryBackground,
	CategoryKeyFacts,
	CategoryLatestUpdates,
	CategoryOpinions,
	CategoryStatistics,
	CategoryExamples,
	CategoryReferences,
	CategoryOther,
}

// IsValidCategory reports whether c is one of the fixed categories.
func IsValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SearchResultItem is a normalized result from the search provider.
// Immutable once created.
type SearchResultItem struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Snippet     string  `json:"snippet,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Author      string  `json:"author,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	Relevance   float64 `json:"relevance"`
}

// CategorizedInfo is a classified excerpt filed in the evidence store.
type CategorizedInfo struct {
	Category    Category `json:"category"`
	Content     string   `json:"content"`
	SourceTitle string   `json:"source_title"`
	SourceURL   string   `json:"source_url"`
	Relevance   float64  `json:"relevance"`
}

// ExplorationStep is the append-only audit record for one round.
type ExplorationStep struct {
	Round         int       `json:"round"`
	Queries       []string  `json:"queries"`
	ResultCount   int       `json:"result_count"`
	NewInfoCount  int       `json:"new_info_count"`
	CoverageScore float64   `json:"coverage_score"`
	QualityScore  float64   `json:"quality_score"`
	Decision      string    `json:"decision"`
	Rationale     string    `json:"rationale"`
	Timestamp     time.Time `json:"timestamp"`
}

// Recommendation is the evaluator's verdict for the next round.
type Recommendation string

const (
	RecommendStop     Recommendation = "stop"
	RecommendContinue Recommendation = "continue"
	RecommendPivot    Recommendation = "pivot"
)

// SufficiencyEvaluation is the per-round combination of the rule-based and
// LLM-based scoring paths. Ephemeral: consumed by the orchestrator and
// discarded.
type SufficiencyEvaluation struct {
	RuleScore           float64        `json:"rule_score"`
	LLMScore            float64        `json:"llm_score"`
	OverallScore        float64        `json:"overall_score"`
	MinRequirementsMet  bool           `json:"min_requirements_met"`
	IsSufficient        bool           `json:"is_sufficient"`
	Confidence          float64        `json:"confidence"`
	MissingCriticalInfo []string       `json:"missing_critical_info,omitempty"`
	SuggestedQueries    []string       `json:"suggested_queries,omitempty"`
	Recommendation      Recommendation `json:"recommendation"`
	Rationale           string         `json:"rationale,omitempty"`
}

// Strategy selects how the next round's queries are built.
type Strategy string

const (
	StrategyBroad        Strategy = "broad"
	StrategyDeep         Strategy = "deep"
	StrategyVerification Strategy = "verification"
	StrategyComparative  Strategy = "comparative"
)

// SearchQuery is one query descriptor handed to the dispatcher.
type SearchQuery struct {
	Query           string `json:"query"`
	DateRestriction string `json:"date_restriction,omitempty"`
	Priority        int    `json:"priority"`
}

// SearchPlan is the set of queries proposed for the next round.
type SearchPlan struct {
	Strategy  Strategy      `json:"strategy"`
	Queries   []SearchQuery `json:"queries"`
	Rationale string        `json:"rationale,omitempty"`
}

// ReportSummary is the structured narrative part of the final report.
type ReportSummary struct {
	Overview         string                `json:"overview"`
	KeyFindings      []string              `json:"key_findings"`
	CategorySections map[Category][]string `json:"category_sections,omitempty"`
}

// QualityMetrics carries the terminal quality assessment of a run.
type QualityMetrics struct {
	CoverageScore float64  `json:"coverage_score"`
	QualityScore  float64  `json:"quality_score"`
	Confidence    float64  `json:"confidence"`
	Limitations   []string `json:"limitations,omitempty"`
}

// ResearchReport is the terminal artifact of a run. Created exactly once, at
// completion or as a partial report on unrecoverable error.
type ResearchReport struct {
	Topic       string             `json:"topic"`
	TotalRounds int                `json:"total_rounds"`
	Elapsed     time.Duration      `json:"elapsed"`
	SourceCount int                `json:"source_count"`
	Summary     ReportSummary      `json:"summary"`
	Metrics     QualityMetrics     `json:"metrics"`
	Trace       []ExplorationStep  `json:"trace,omitempty"`
	Evidence    []SearchResultItem `json:"evidence,omitempty"`
	Partial     bool               `json:"partial,omitempty"`
	Error       string             `json:"error,omitempty"`
}
