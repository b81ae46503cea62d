package research

import "strings"

// Weights for combining the two scoring paths. The rule-based path is the
// conservative floor; the LLM judgment carries more weight when available.
const (
	ruleScoreWeight = 0.4
	llmScoreWeight  = 0.6

	categoryCoverageWeight = 0.6
	requiredInfoWeight     = 0.4

	// perCategoryTarget is how many excerpts a category needs before it
	// counts as fully covered.
	perCategoryTarget = 2

	// Hard floor: evidence below these volumes can never be sufficient.
	minCoveredCategories = 3
	minRawResults        = 5
)

// RuleScores holds the deterministic half of a sufficiency evaluation.
type RuleScores struct {
	AvgCoverage        float64 `json:"avg_coverage"`
	RequiredInfoScore  float64 `json:"required_info_score"`
	Score              float64 `json:"score"`
	MinRequirementsMet bool    `json:"min_requirements_met"`
}

// EvaluateRules computes the rule-based sufficiency score from a snapshot.
//
// Each category covers min(n/target, 1)×100; avgCoverage averages all eight.
// Required-info coverage is the fraction of required labels found as a
// substring of any excerpt's content or source title, defaulting to 100 when
// no labels were requested.
func EvaluateRules(snap Snapshot) RuleScores {
	var coverageSum float64
	covered := 0
	for _, cat := range Categories {
		n := len(snap.Evidence[cat])
		if n > 0 {
			covered++
		}
		c := float64(n) / perCategoryTarget
		if c > 1 {
			c = 1
		}
		coverageSum += c * 100
	}
	avgCoverage := coverageSum / float64(len(Categories))

	requiredScore := 100.0
	if len(snap.RequiredInfo) > 0 {
		found := 0
		for _, label := range snap.RequiredInfo {
			if snapshotMentions(snap, label) {
				found++
			}
		}
		requiredScore = float64(found) / float64(len(snap.RequiredInfo)) * 100
	}

	return RuleScores{
		AvgCoverage:        avgCoverage,
		RequiredInfoScore:  requiredScore,
		Score:              avgCoverage*categoryCoverageWeight + requiredScore*requiredInfoWeight,
		MinRequirementsMet: covered >= minCoveredCategories && snap.RawResultCount >= minRawResults,
	}
}

func snapshotMentions(snap Snapshot, label string) bool {
	needle := strings.ToLower(strings.TrimSpace(label))
	if needle == "" {
		return false
	}
	for _, entries := range snap.Evidence {
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Content), needle) ||
				strings.Contains(strings.ToLower(e.SourceTitle), needle) {
				return true
			}
		}
	}
	return false
}

// LLMJudgment is the parsed LLM half of a sufficiency evaluation.
type LLMJudgment struct {
	Score               float64  `json:"score"`
	Rationale           string   `json:"rationale,omitempty"`
	MissingCriticalInfo []string `json:"missing_critical_info,omitempty"`
	SuggestedQueries    []string `json:"suggested_queries,omitempty"`
}

// FallbackLLMScore is the deterministic last-resort judgment used when every
// LLM parsing path has failed: modest credit when the run has accumulated a
// reasonable evidence volume, low otherwise.
func FallbackLLMScore(rawResultCount int) float64 {
	if rawResultCount >= 10 {
		return 60
	}
	return 40
}

// Combine merges the two scoring paths into the final evaluation.
//
// overall = rule×0.4 + llm×0.6. Sufficiency requires the hard volume floor,
// at most two missing critical items, and overall at or above the configured
// minimum coverage. Confidence rises as the two scores agree:
// clamp(1−|rule−llm|/100)×0.7 + 0.3.
func Combine(rules RuleScores, judgment LLMJudgment, minCoverageScore float64) SufficiencyEvaluation {
	overall := rules.Score*ruleScoreWeight + judgment.Score*llmScoreWeight

	agreement := 1 - absFloat(rules.Score-judgment.Score)/100
	if agreement < 0 {
		agreement = 0
	} else if agreement > 1 {
		agreement = 1
	}

	eval := SufficiencyEvaluation{
		RuleScore:           rules.Score,
		LLMScore:            judgment.Score,
		OverallScore:        overall,
		MinRequirementsMet:  rules.MinRequirementsMet,
		Confidence:          agreement*0.7 + 0.3,
		MissingCriticalInfo: judgment.MissingCriticalInfo,
		SuggestedQueries:    judgment.SuggestedQueries,
		Rationale:           judgment.Rationale,
	}
	eval.IsSufficient = rules.MinRequirementsMet &&
		len(judgment.MissingCriticalInfo) <= 2 &&
		overall >= minCoverageScore

	switch {
	case overall >= 85:
		eval.Recommendation = RecommendStop
	case overall >= 60 && len(judgment.SuggestedQueries) == 0:
		eval.Recommendation = RecommendStop
	case overall < 40:
		eval.Recommendation = RecommendPivot
	default:
		eval.Recommendation = RecommendContinue
	}
	return eval
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// AuditScores is the cruder post-round coverage/quality pass driven purely by
// accumulated evidence volume. It feeds the audit trail and the next round's
// early-stop check, and is a separate calculation from EvaluateRules.
func AuditScores(rawResults, categorized int) (coverage, quality float64) {
	switch {
	case rawResults >= 50 && categorized >= 15:
		return 85, 80
	case rawResults >= 30 && categorized >= 10:
		return 75, 70
	case rawResults >= 15 && categorized >= 5:
		return 65, 60
	default:
		return 50, 50
	}
}
