package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/orbiterhq/deepresearch/internal/llm"
	"github.com/orbiterhq/deepresearch/internal/metrics"
	"github.com/orbiterhq/deepresearch/internal/research"
)

// classifyBatchSize is how many results go into one LLM classification call.
const classifyBatchSize = 5

// ClassifyResultsInput carries one round's deduplicated results.
type ClassifyResultsInput struct {
	RunID string                      `json:"run_id"`
	Topic string                      `json:"topic"`
	Items []research.SearchResultItem `json:"items"`
}

// ClassifyResultsResult returns the classified excerpts as deltas for the
// workflow to file through the state manager.
type ClassifyResultsResult struct {
	Entries         []research.CategorizedInfo `json:"entries"`
	FallbackBatches int                        `json:"fallback_batches"`
}

type classifiedItem struct {
	Index     int     `json:"index"`
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
	KeyInfo   string  `json:"key_info"`
}

// ClassifyResults batches items and asks the LLM for category, relevance and
// a key-information excerpt per item under a strict JSON-only contract. A
// batch whose response fails to parse falls back to the deterministic
// keyword classifier; this path never errors.
func (a *Activities) ClassifyResults(ctx context.Context, input ClassifyResultsInput) (*ClassifyResultsResult, error) {
	logger := activity.GetLogger(ctx)
	result := &ClassifyResultsResult{}

	for start := 0; start < len(input.Items); start += classifyBatchSize {
		end := start + classifyBatchSize
		if end > len(input.Items) {
			end = len(input.Items)
		}
		batch := input.Items[start:end]

		entries, err := a.classifyBatchLLM(ctx, input.Topic, batch)
		if err != nil {
			result.FallbackBatches++
			metrics.LLMFallbacks.WithLabelValues("classification").Inc()
			logger.Warn("classification batch fell back to keywords",
				"run_id", input.RunID,
				"batch_start", start,
				"batch_size", len(batch),
				"error", err,
			)
			entries = make([]research.CategorizedInfo, 0, len(batch))
			for _, item := range batch {
				entries = append(entries, research.ClassifyByKeywords(item))
			}
		}
		result.Entries = append(result.Entries, entries...)
	}

	logger.Info("classification complete",
		"run_id", input.RunID,
		"items", len(input.Items),
		"entries", len(result.Entries),
		"fallback_batches", result.FallbackBatches,
	)
	return result, nil
}

func (a *Activities) classifyBatchLLM(ctx context.Context, topic string, batch []research.SearchResultItem) ([]research.CategorizedInfo, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("llm client not configured")
	}

	text, err := a.llm.Complete(ctx, llm.Request{
		Prompt:       buildClassificationContent(topic, batch),
		SystemPrompt: classificationSystemPrompt,
		MaxTokens:    2048,
		Temperature:  0.1,
		AgentID:      "result_classifier",
		ModelTier:    "small",
	})
	if err != nil {
		return nil, err
	}

	arr, err := llm.ExtractJSONArray(text)
	if err != nil {
		return nil, err
	}
	var parsed []classifiedItem
	if err := json.Unmarshal([]byte(arr), &parsed); err != nil {
		return nil, fmt.Errorf("parse classification JSON: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty classification response")
	}

	entries := make([]research.CategorizedInfo, 0, len(batch))
	seen := make(map[int]bool, len(parsed))
	for _, c := range parsed {
		if c.Index < 0 || c.Index >= len(batch) || seen[c.Index] {
			continue
		}
		seen[c.Index] = true
		item := batch[c.Index]

		category := research.Category(strings.ToLower(strings.TrimSpace(c.Category)))
		if !research.IsValidCategory(category) {
			category = research.CategoryOther
		}
		relevance := c.Relevance
		if relevance < 0 {
			relevance = 0
		} else if relevance > 1 {
			relevance = 1
		}
		content := strings.TrimSpace(c.KeyInfo)
		if content == "" {
			content = item.Snippet
		}
		if content == "" {
			content = truncateStr(item.Content, 500)
		}

		entries = append(entries, research.CategorizedInfo{
			Category:    category,
			Content:     content,
			SourceTitle: item.Title,
			SourceURL:   item.URL,
			Relevance:   relevance,
		})
	}

	// items the model skipped still get classified
	for i, item := range batch {
		if !seen[i] {
			entries = append(entries, research.ClassifyByKeywords(item))
		}
	}
	return entries, nil
}

const classificationSystemPrompt = `You are a research result classifier. For each numbered result you receive,
assign exactly one category from this closed set:
background, key_facts, latest_updates, opinions, statistics, examples, references, other

Respond with ONLY a JSON array, no prose, one element per result:
[{"index": 0, "category": "key_facts", "relevance": 0.8, "key_info": "one-sentence extract of the most useful information"}]

"relevance" is 0.0-1.0 for how useful the result is to the research topic.
"key_info" must quote or tightly paraphrase the result, not speculate beyond it.`

func buildClassificationContent(topic string, batch []research.SearchResultItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research topic: %s\n\n", topic)
	for i, item := range batch {
		fmt.Fprintf(&sb, "[%d] %s\n", i, item.Title)
		body := item.Snippet
		if body == "" {
			body = item.Content
		}
		fmt.Fprintf(&sb, "%s\n\n", truncateStr(body, 600))
	}
	return sb.String()
}
