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

// excerptsPerCategoryInPrompt caps how much evidence goes into the judgment
// prompt per category.
const excerptsPerCategoryInPrompt = 3

// JudgeSufficiencyInput is the snapshot the LLM judges.
type JudgeSufficiencyInput struct {
	RunID    string            `json:"run_id"`
	Snapshot research.Snapshot `json:"snapshot"`
}

// JudgeSufficiencyResult is the LLM half of a sufficiency evaluation.
type JudgeSufficiencyResult struct {
	Judgment     research.LLMJudgment `json:"judgment"`
	UsedFallback bool                 `json:"used_fallback"`
}

// JudgeSufficiency asks the LLM for a 0-100 sufficiency score, missing
// critical information and suggested follow-up queries. Parsing degrades
// progressively: strict JSON, then a regex-extracted score, then the
// deterministic volume-based default. This activity never errors.
func (a *Activities) JudgeSufficiency(ctx context.Context, input JudgeSufficiencyInput) (*JudgeSufficiencyResult, error) {
	logger := activity.GetLogger(ctx)
	snap := input.Snapshot

	text, err := a.completeJudgment(ctx, snap)
	if err != nil {
		metrics.LLMFallbacks.WithLabelValues("sufficiency").Inc()
		logger.Warn("sufficiency judgment unavailable, using deterministic fallback",
			"run_id", input.RunID,
			"error", err,
		)
		return &JudgeSufficiencyResult{
			Judgment: research.LLMJudgment{
				Score:     research.FallbackLLMScore(snap.RawResultCount),
				Rationale: "model judgment unavailable, scored on evidence volume",
			},
			UsedFallback: true,
		}, nil
	}

	var judgment research.LLMJudgment
	if obj, jerr := llm.ExtractJSONObject(text); jerr == nil {
		if perr := jsonUnmarshalStrictScore(obj, &judgment); perr == nil {
			logger.Info("sufficiency judged",
				"run_id", input.RunID,
				"score", judgment.Score,
				"missing", len(judgment.MissingCriticalInfo),
				"suggested", len(judgment.SuggestedQueries),
			)
			return &JudgeSufficiencyResult{Judgment: judgment}, nil
		}
	}

	// looser extraction before giving up on the response entirely
	if score, ok := llm.ExtractScore(text); ok {
		metrics.LLMFallbacks.WithLabelValues("sufficiency_regex").Inc()
		logger.Warn("sufficiency response malformed, extracted score by regex",
			"run_id", input.RunID,
			"score", score,
		)
		return &JudgeSufficiencyResult{
			Judgment:     research.LLMJudgment{Score: score, Rationale: "score recovered from malformed response"},
			UsedFallback: true,
		}, nil
	}

	metrics.LLMFallbacks.WithLabelValues("sufficiency").Inc()
	return &JudgeSufficiencyResult{
		Judgment: research.LLMJudgment{
			Score:     research.FallbackLLMScore(snap.RawResultCount),
			Rationale: "model response unusable, scored on evidence volume",
		},
		UsedFallback: true,
	}, nil
}

func (a *Activities) completeJudgment(ctx context.Context, snap research.Snapshot) (string, error) {
	if a.llm == nil {
		return "", fmt.Errorf("llm client not configured")
	}
	return a.llm.Complete(ctx, llm.Request{
		Prompt:       buildSufficiencyContent(snap),
		SystemPrompt: sufficiencySystemPrompt,
		MaxTokens:    2048,
		Temperature:  0.2,
		AgentID:      "sufficiency_judge",
		ModelTier:    "small",
	})
}

// jsonUnmarshalStrictScore parses the judgment object and rejects responses
// missing the score field (a zero score with no rationale is a parse miss,
// not a verdict).
func jsonUnmarshalStrictScore(obj string, out *research.LLMJudgment) error {
	var raw struct {
		Score               *float64 `json:"score"`
		Rationale           string   `json:"rationale"`
		MissingCriticalInfo []string `json:"missing_critical_info"`
		SuggestedQueries    []string `json:"suggested_queries"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return err
	}
	if raw.Score == nil {
		return fmt.Errorf("judgment missing score field")
	}
	score := *raw.Score
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	out.Score = score
	out.Rationale = raw.Rationale
	out.MissingCriticalInfo = raw.MissingCriticalInfo
	out.SuggestedQueries = raw.SuggestedQueries
	return nil
}

const sufficiencySystemPrompt = `You are a research sufficiency judge. Given the evidence collected so far on
a topic, decide how complete the investigation is.

Only substantive information counts as coverage. Statements like "no data
available" are gaps, not findings.

Respond with ONLY a JSON object:
{
  "score": 65,
  "rationale": "one or two sentences",
  "missing_critical_info": ["..."],
  "suggested_queries": ["..."]
}

"score" is 0-100 overall sufficiency. List at most 4 missing items and at
most 3 follow-up queries; leave the arrays empty when nothing is needed.`

func buildSufficiencyContent(snap research.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Topic\n%s\n\n", snap.Topic)
	if snap.Query != "" && snap.Query != snap.Topic {
		fmt.Fprintf(&sb, "## Original question\n%s\n\n", snap.Query)
	}
	if len(snap.RequiredInfo) > 0 {
		sb.WriteString("## Required information\n")
		for _, label := range snap.RequiredInfo {
			fmt.Fprintf(&sb, "- %s\n", label)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "## Progress\nRound %d of %d, %d deduplicated sources.\n\n", snap.Round, snap.MaxRounds, snap.RawResultCount)

	sb.WriteString("## Evidence collected\n")
	if len(snap.NonEmptyCategories()) == 0 {
		sb.WriteString("(none yet)\n")
	}
	for _, cat := range snap.NonEmptyCategories() {
		fmt.Fprintf(&sb, "### %s (%d items)\n", cat, len(snap.Evidence[cat]))
		for i, e := range snap.Evidence[cat] {
			if i >= excerptsPerCategoryInPrompt {
				break
			}
			fmt.Fprintf(&sb, "- %s\n", truncateStr(e.Content, 200))
		}
	}
	return sb.String()
}
