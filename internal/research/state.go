package research

import (
	"fmt"
	"strings"
	"time"
)

// similarityThreshold is the Jaccard index above which two excerpts in the
// same category are treated as near-duplicates.
const similarityThreshold = 0.8

// StopReason strings returned by ShouldStop and recorded on completion.
const (
	StopReasonCompleted    = "marked complete"
	StopReasonMaxRounds    = "max rounds reached"
	StopReasonEarlyScore   = "score threshold reached"
	StopReasonStalled      = "no new information in two consecutive rounds"
	StopReasonSufficient   = "information sufficient"
	StopReasonNoAvenues    = "no further avenues"
	StopReasonInternalFail = "internal error"
)

// Limits tunes the stopping behavior of a run.
type Limits struct {
	MaxRounds          int     `json:"max_rounds"`
	EarlyStopThreshold float64 `json:"early_stop_threshold"`
	MinCoverageScore   float64 `json:"min_coverage_score"`
}

// State is the authoritative record of one research run: round counter,
// executed queries, scores, stopping flags, the per-round audit trail, and
// the deduplicated evidence store. It is the single writer for all run
// state; other components receive Snapshot values and hand back deltas.
//
// All access happens on the single control-loop thread of execution, so the
// struct carries no locking.
type State struct {
	topic        string
	query        string
	requiredInfo []string
	limits       Limits
	startedAt    time.Time

	round            int
	executedQueries  []string
	coverageScore    float64
	qualityScore     float64
	completed        bool
	completionReason string
	steps            []ExplorationStep

	rawResults []SearchResultItem
	seenURLs   map[string]struct{}
	evidence   map[Category][]CategorizedInfo
}

// NewState creates run state for a topic. startedAt is supplied by the caller
// so the state stays deterministic under replay.
func NewState(topic, query string, requiredInfo []string, limits Limits, startedAt time.Time) *State {
	if limits.MaxRounds <= 0 {
		limits.MaxRounds = 5
	}
	if limits.EarlyStopThreshold <= 0 {
		limits.EarlyStopThreshold = 85
	}
	if limits.MinCoverageScore <= 0 {
		limits.MinCoverageScore = 70
	}
	return &State{
		topic:        topic,
		query:        query,
		requiredInfo: requiredInfo,
		limits:       limits,
		startedAt:    startedAt,
		seenURLs:     make(map[string]struct{}),
		evidence:     make(map[Category][]CategorizedInfo),
	}
}

// StartRound increments and returns the round counter.
func (s *State) StartRound() int {
	s.round++
	return s.round
}

// Round returns the current round number.
func (s *State) Round() int { return s.round }

// Topic returns the research topic.
func (s *State) Topic() string { return s.topic }

// Limits returns the configured stopping limits.
func (s *State) Limits() Limits { return s.limits }

// StartedAt returns the run start timestamp.
func (s *State) StartedAt() time.Time { return s.startedAt }

// AddRawResults appends items whose normalized URL has not been seen before
// and returns the survivors so the caller can process only fresh material.
func (s *State) AddRawResults(items []SearchResultItem) []SearchResultItem {
	var added []SearchResultItem
	for _, item := range items {
		key := NormalizeURL(item.URL)
		if key == "" {
			key = item.ID
		}
		if _, dup := s.seenURLs[key]; dup {
			continue
		}
		s.seenURLs[key] = struct{}{}
		s.rawResults = append(s.rawResults, item)
		added = append(added, item)
	}
	return added
}

// AddCategorizedInfo files an excerpt unless a near-duplicate already exists
// in the same category. Returns true when the entry was kept. Entries with an
// unknown category are filed under other rather than dropped.
func (s *State) AddCategorizedInfo(entry CategorizedInfo) bool {
	if !IsValidCategory(entry.Category) {
		entry.Category = CategoryOther
	}
	for _, existing := range s.evidence[entry.Category] {
		if JaccardSimilarity(existing.Content, entry.Content) > similarityThreshold {
			return false
		}
	}
	s.evidence[entry.Category] = append(s.evidence[entry.Category], entry)
	return true
}

// RecordQueries appends executed query strings to the run history.
func (s *State) RecordQueries(queries []string) {
	s.executedQueries = append(s.executedQueries, queries...)
}

// HasExecutedQuery reports whether q was already issued (case-insensitive).
func (s *State) HasExecutedQuery(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	for _, prev := range s.executedQueries {
		if strings.ToLower(strings.TrimSpace(prev)) == q {
			return true
		}
	}
	return false
}

// UpdateScores overwrites the current coverage/quality score pair.
func (s *State) UpdateScores(coverage, quality float64) {
	s.coverageScore = coverage
	s.qualityScore = quality
}

// RecordExplorationStep appends an immutable audit entry.
func (s *State) RecordExplorationStep(step ExplorationStep) {
	s.steps = append(s.steps, step)
}

// MarkComplete sets the terminal flag. The first reason wins; later calls
// are ignored so completion stays monotonic.
func (s *State) MarkComplete(reason string) {
	if s.completed {
		return
	}
	s.completed = true
	s.completionReason = reason
}

// Completed reports the terminal flag and its reason.
func (s *State) Completed() (bool, string) {
	return s.completed, s.completionReason
}

// ShouldStop evaluates the stop conditions in order and returns the first
// matching reason. It never mutates state and is safe to call repeatedly.
func (s *State) ShouldStop() (bool, string) {
	if s.completed {
		return true, s.completionReason
	}
	if s.round >= s.limits.MaxRounds {
		return true, StopReasonMaxRounds
	}
	if (s.coverageScore+s.qualityScore)/2 >= s.limits.EarlyStopThreshold {
		return true, fmt.Sprintf("%s (coverage %.0f, quality %.0f)", StopReasonEarlyScore, s.coverageScore, s.qualityScore)
	}
	if n := len(s.steps); n >= 2 {
		if s.steps[n-1].NewInfoCount == 0 && s.steps[n-2].NewInfoCount == 0 {
			return true, StopReasonStalled
		}
	}
	return false, ""
}

// RawResultCount returns the number of deduplicated raw results.
func (s *State) RawResultCount() int { return len(s.rawResults) }

// CategorizedCount returns the total number of filed excerpts.
func (s *State) CategorizedCount() int {
	total := 0
	for _, entries := range s.evidence {
		total += len(entries)
	}
	return total
}

// Steps returns the audit trail as a copy.
func (s *State) Steps() []ExplorationStep {
	out := make([]ExplorationStep, len(s.steps))
	copy(out, s.steps)
	return out
}

// Snapshot is an immutable view of run state handed to the evaluator and
// result processor. It is a value copy; holders cannot reach back into the
// live state.
type Snapshot struct {
	Topic           string                       `json:"topic"`
	Query           string                       `json:"query"`
	RequiredInfo    []string                     `json:"required_info,omitempty"`
	Round           int                          `json:"round"`
	MaxRounds       int                          `json:"max_rounds"`
	ExecutedQueries []string                     `json:"executed_queries,omitempty"`
	RawResultCount  int                          `json:"raw_result_count"`
	Evidence        map[Category][]CategorizedInfo `json:"evidence,omitempty"`
	CoverageScore   float64                      `json:"coverage_score"`
	QualityScore    float64                      `json:"quality_score"`
}

// Snapshot returns a read-only copy of the current run state.
func (s *State) Snapshot() Snapshot {
	evidence := make(map[Category][]CategorizedInfo, len(s.evidence))
	for cat, entries := range s.evidence {
		cp := make([]CategorizedInfo, len(entries))
		copy(cp, entries)
		evidence[cat] = cp
	}
	queries := make([]string, len(s.executedQueries))
	copy(queries, s.executedQueries)
	required := make([]string, len(s.requiredInfo))
	copy(required, s.requiredInfo)
	return Snapshot{
		Topic:           s.topic,
		Query:           s.query,
		RequiredInfo:    required,
		Round:           s.round,
		MaxRounds:       s.limits.MaxRounds,
		ExecutedQueries: queries,
		RawResultCount:  len(s.rawResults),
		Evidence:        evidence,
		CoverageScore:   s.coverageScore,
		QualityScore:    s.qualityScore,
	}
}

// RawResults returns a copy of the deduplicated raw result list.
func (s *State) RawResults() []SearchResultItem {
	out := make([]SearchResultItem, len(s.rawResults))
	copy(out, s.rawResults)
	return out
}

// TopExcerpts returns up to limit excerpts across categories in stable
// category order, highest relevance first within each category.
func (snap Snapshot) TopExcerpts(limit int) []CategorizedInfo {
	var out []CategorizedInfo
	for _, cat := range Categories {
		entries := snap.Evidence[cat]
		sorted := make([]CategorizedInfo, len(entries))
		copy(sorted, entries)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j].Relevance > sorted[j-1].Relevance; j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		out = append(out, sorted...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NonEmptyCategories returns categories with at least one excerpt, in stable
// order.
func (snap Snapshot) NonEmptyCategories() []Category {
	var out []Category
	for _, cat := range Categories {
		if len(snap.Evidence[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}

// CategorizedTotal returns the total excerpt count in the snapshot.
func (snap Snapshot) CategorizedTotal() int {
	total := 0
	for _, entries := range snap.Evidence {
		total += len(entries)
	}
	return total
}
