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

// synthesisExcerptLimit caps how many excerpts feed the final narrative.
const synthesisExcerptLimit = 30

// SynthesizeReportInput is the terminal evidence snapshot.
type SynthesizeReportInput struct {
	RunID    string            `json:"run_id"`
	Snapshot research.Snapshot `json:"snapshot"`
}

// SynthesizeReportResult is the narrative summary for the final report.
type SynthesizeReportResult struct {
	Summary      research.ReportSummary `json:"summary"`
	UsedFallback bool                   `json:"used_fallback"`
}

// SynthesizeReport produces the report narrative. With no categorized
// evidence it emits the fixed insufficient-information summary; otherwise it
// asks the LLM for an overview and three to five key findings over the top
// excerpts, falling back to the deterministic count-based summary on any
// failure. Never errors.
func (a *Activities) SynthesizeReport(ctx context.Context, input SynthesizeReportInput) (*SynthesizeReportResult, error) {
	logger := activity.GetLogger(ctx)
	snap := input.Snapshot

	if snap.CategorizedTotal() == 0 {
		logger.Info("no categorized evidence, emitting insufficient-information report",
			"run_id", input.RunID,
		)
		return &SynthesizeReportResult{Summary: research.InsufficientSummary(snap.Topic)}, nil
	}

	summary, err := a.synthesizeLLM(ctx, snap)
	if err != nil {
		metrics.LLMFallbacks.WithLabelValues("synthesis").Inc()
		logger.Warn("synthesis fell back to deterministic summary",
			"run_id", input.RunID,
			"error", err,
		)
		return &SynthesizeReportResult{
			Summary:      research.FallbackSummary(snap),
			UsedFallback: true,
		}, nil
	}

	// sections are always assembled deterministically from the store
	summary.CategorySections = research.CategorySections(snap, 3)
	logger.Info("report synthesized",
		"run_id", input.RunID,
		"findings", len(summary.KeyFindings),
	)
	return &SynthesizeReportResult{Summary: summary}, nil
}

func (a *Activities) synthesizeLLM(ctx context.Context, snap research.Snapshot) (research.ReportSummary, error) {
	var summary research.ReportSummary
	if a.llm == nil {
		return summary, fmt.Errorf("llm client not configured")
	}

	text, err := a.llm.Complete(ctx, llm.Request{
		Prompt:       buildSynthesisContent(snap),
		SystemPrompt: synthesisSystemPrompt,
		MaxTokens:    4096,
		Temperature:  0.3,
		AgentID:      "report_synthesizer",
		ModelTier:    "large",
	})
	if err != nil {
		return summary, err
	}

	obj, err := llm.ExtractJSONObject(text)
	if err != nil {
		return summary, err
	}
	var parsed struct {
		Overview    string   `json:"overview"`
		KeyFindings []string `json:"key_findings"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return summary, fmt.Errorf("parse synthesis JSON: %w", err)
	}
	if strings.TrimSpace(parsed.Overview) == "" || len(parsed.KeyFindings) == 0 {
		return summary, fmt.Errorf("synthesis response missing overview or findings")
	}

	summary.Overview = strings.TrimSpace(parsed.Overview)
	summary.KeyFindings = parsed.KeyFindings
	if len(summary.KeyFindings) > 5 {
		summary.KeyFindings = summary.KeyFindings[:5]
	}
	return summary, nil
}

const synthesisSystemPrompt = `You are a research report writer. From the classified evidence you receive,
write the final summary.

Respond with ONLY a JSON object:
{
  "overview": "one paragraph synthesizing the state of knowledge on the topic",
  "key_findings": ["finding 1", "finding 2", "finding 3"]
}

Provide 3 to 5 key findings. Every claim must trace to the supplied
evidence; do not introduce outside knowledge.`

func buildSynthesisContent(snap research.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Topic\n%s\n\n", snap.Topic)
	fmt.Fprintf(&sb, "## Scale\n%d sources over %d rounds.\n\n", snap.RawResultCount, snap.Round)
	sb.WriteString("## Evidence\n")
	for _, e := range snap.TopExcerpts(synthesisExcerptLimit) {
		fmt.Fprintf(&sb, "- [%s] %s (%s)\n", e.Category, truncateStr(e.Content, 300), e.SourceTitle)
	}
	return sb.String()
}
