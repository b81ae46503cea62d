package research

import "fmt"

// maxFallbackFindings caps the findings list when synthesis falls back to raw
// excerpts.
const maxFallbackFindings = 5

// InsufficientSummary is the terminal summary for a run that gathered no
// categorized evidence at all.
func InsufficientSummary(topic string) ReportSummary {
	return ReportSummary{
		Overview: fmt.Sprintf("Insufficient information was gathered on %q to produce findings.", topic),
	}
}

// FallbackSummary builds a deterministic summary from accumulated evidence,
// used when LLM synthesis fails: a count-based overview sentence plus the
// first excerpts as findings.
func FallbackSummary(snap Snapshot) ReportSummary {
	if snap.CategorizedTotal() == 0 {
		return InsufficientSummary(snap.Topic)
	}
	summary := ReportSummary{
		Overview: fmt.Sprintf(
			"Research on %q collected %d results across %d rounds, yielding %d classified excerpts in %d categories.",
			snap.Topic, snap.RawResultCount, snap.Round, snap.CategorizedTotal(), len(snap.NonEmptyCategories()),
		),
		CategorySections: CategorySections(snap, 3),
	}
	for _, excerpt := range snap.TopExcerpts(maxFallbackFindings) {
		summary.KeyFindings = append(summary.KeyFindings, excerpt.Content)
	}
	return summary
}

// CategorySections maps each non-empty category to up to perCategory excerpt
// texts, in stable category order.
func CategorySections(snap Snapshot, perCategory int) map[Category][]string {
	sections := make(map[Category][]string)
	for _, cat := range snap.NonEmptyCategories() {
		for i, e := range snap.Evidence[cat] {
			if i >= perCategory {
				break
			}
			sections[cat] = append(sections[cat], e.Content)
		}
	}
	return sections
}

// Limitations derives the report's limitations list from final run state.
func Limitations(snap Snapshot, eval SufficiencyEvaluation) []string {
	var out []string
	if snap.RawResultCount == 0 {
		out = append(out, "no sources could be retrieved for this topic")
	} else if snap.RawResultCount < minRawResults {
		out = append(out, fmt.Sprintf("only %d sources were retrieved", snap.RawResultCount))
	}
	for _, missing := range eval.MissingCriticalInfo {
		out = append(out, fmt.Sprintf("missing: %s", missing))
	}
	if eval.Confidence > 0 && eval.Confidence < 0.5 {
		out = append(out, "rule-based and model-based sufficiency scores diverged significantly")
	}
	if !eval.MinRequirementsMet {
		out = append(out, "minimum evidence volume was not reached")
	}
	return out
}
