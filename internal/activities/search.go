package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/orbiterhq/deepresearch/internal/metrics"
	"github.com/orbiterhq/deepresearch/internal/research"
	"github.com/orbiterhq/deepresearch/internal/search"
)

// interQueryDelay spaces out consecutive queries inside one dispatch. The
// upstream provider enforces per-second quotas, so the batch is deliberately
// serialized rather than fanned out.
const interQueryDelay = 300 * time.Millisecond

// DispatchSearchesInput is one round's query batch.
type DispatchSearchesInput struct {
	RunID              string                 `json:"run_id"`
	Queries            []research.SearchQuery `json:"queries"`
	MaxResultsPerQuery int                    `json:"max_results_per_query,omitempty"`
}

// DispatchStats describes how a dispatch went.
type DispatchStats struct {
	QueriesAttempted int           `json:"queries_attempted"`
	QueriesFailed    int           `json:"queries_failed"`
	ResultsPerQuery  []int         `json:"results_per_query"`
	WallTime         time.Duration `json:"wall_time"`
}

// DispatchSearchesResult is the concatenated result list plus stats.
type DispatchSearchesResult struct {
	Items []research.SearchResultItem `json:"items"`
	Stats DispatchStats               `json:"stats"`
}

// DispatchSearches issues the round's queries one at a time. A failing query
// degrades to an empty result set for that query; the batch never aborts.
// An unconfigured provider yields an empty result, letting the loop
// terminate through stall detection.
func (a *Activities) DispatchSearches(ctx context.Context, input DispatchSearchesInput) (*DispatchSearchesResult, error) {
	logger := activity.GetLogger(ctx)
	started := time.Now()

	result := &DispatchSearchesResult{
		Stats: DispatchStats{ResultsPerQuery: make([]int, 0, len(input.Queries))},
	}

	if !a.search.Configured() {
		logger.Warn("search provider not configured, returning empty results",
			"run_id", input.RunID,
			"queries", len(input.Queries),
		)
		for range input.Queries {
			result.Stats.ResultsPerQuery = append(result.Stats.ResultsPerQuery, 0)
		}
		result.Stats.QueriesAttempted = len(input.Queries)
		result.Stats.WallTime = time.Since(started)
		return result, nil
	}

	for i, q := range input.Queries {
		if i > 0 {
			select {
			case <-time.After(interQueryDelay):
			case <-ctx.Done():
				result.Stats.WallTime = time.Since(started)
				return result, ctx.Err()
			}
		}

		result.Stats.QueriesAttempted++
		items, err := a.search.Search(ctx, q.Query, search.Options{
			DateRestriction: q.DateRestriction,
			MaxResults:      input.MaxResultsPerQuery,
		})
		if err != nil {
			// swallowed per query: the round continues on partial evidence
			result.Stats.QueriesFailed++
			result.Stats.ResultsPerQuery = append(result.Stats.ResultsPerQuery, 0)
			metrics.SearchQueries.WithLabelValues("error").Inc()
			logger.Warn("search query failed",
				"run_id", input.RunID,
				"query", truncateStr(q.Query, 100),
				"error", err,
			)
			continue
		}
		result.Items = append(result.Items, items...)
		result.Stats.ResultsPerQuery = append(result.Stats.ResultsPerQuery, len(items))
		metrics.SearchQueries.WithLabelValues("ok").Inc()
		metrics.SearchResults.Add(float64(len(items)))
	}

	result.Stats.WallTime = time.Since(started)
	logger.Info("search dispatch complete",
		"run_id", input.RunID,
		"attempted", result.Stats.QueriesAttempted,
		"failed", result.Stats.QueriesFailed,
		"results", len(result.Items),
		"wall_time", result.Stats.WallTime,
	)
	return result, nil
}
