package research

import (
	"fmt"
	"strings"
)

// Planner limits. At most four queries per round keeps each round inside the
// provider's rate budget.
const (
	maxQueriesPerRound   = 4
	maxSuggestedQueries  = 2
	maxGapQueries        = 2
	broadStrategyRounds  = 2
	verificationMinScore = 70
)

// strategyTemplates are the filler query templates per strategy, applied to
// the topic until the round's query budget is filled.
var strategyTemplates = map[Strategy][]string{
	StrategyBroad:        {"%s overview", "%s key facts", "%s latest developments"},
	StrategyDeep:         {"%s detailed analysis", "%s expert interpretation", "%s in-depth report"},
	StrategyVerification: {"%s official data", "%s fact check", "%s primary sources"},
	StrategyComparative:  {"%s compared to alternatives", "%s advantages and disadvantages", "%s industry comparison"},
}

// SelectStrategy picks the next round's strategy. The first rounds always go
// broad; after that gaps drive depth, strong scores drive verification, and
// middling runs pivot to comparison.
func SelectStrategy(round int, eval SufficiencyEvaluation) Strategy {
	switch {
	case round <= broadStrategyRounds:
		return StrategyBroad
	case len(eval.MissingCriticalInfo) > 0:
		return StrategyDeep
	case eval.OverallScore >= verificationMinScore:
		return StrategyVerification
	default:
		return StrategyComparative
	}
}

// GenerateSearchPlan builds up to four candidate queries for the next round,
// in priority order: LLM-suggested queries, then one templated query per
// missing critical item, then strategy filler templates. Any candidate that
// matches an already-executed query (case-insensitively) is discarded; an
// empty plan therefore signals that every avenue is exhausted.
func GenerateSearchPlan(snap Snapshot, eval SufficiencyEvaluation, dateRestriction string) SearchPlan {
	strategy := SelectStrategy(snap.Round, eval)

	executed := make(map[string]struct{}, len(snap.ExecutedQueries))
	for _, q := range snap.ExecutedQueries {
		executed[normalizeQuery(q)] = struct{}{}
	}

	var queries []SearchQuery
	add := func(text string, priority int) {
		if len(queries) >= maxQueriesPerRound {
			return
		}
		text = strings.TrimSpace(text)
		key := normalizeQuery(text)
		if text == "" {
			return
		}
		if _, dup := executed[key]; dup {
			return
		}
		executed[key] = struct{}{}
		queries = append(queries, SearchQuery{
			Query:           text,
			DateRestriction: dateRestriction,
			Priority:        priority,
		})
	}

	for i, q := range eval.SuggestedQueries {
		if i >= maxSuggestedQueries {
			break
		}
		add(q, 1)
	}
	for i, missing := range eval.MissingCriticalInfo {
		if i >= maxGapQueries {
			break
		}
		add(fmt.Sprintf("%s %s", snap.Topic, missing), 2)
	}
	for _, tmpl := range strategyTemplates[strategy] {
		add(fmt.Sprintf(tmpl, snap.Topic), 3)
	}

	return SearchPlan{
		Strategy:  strategy,
		Queries:   queries,
		Rationale: planRationale(strategy, eval),
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func planRationale(strategy Strategy, eval SufficiencyEvaluation) string {
	switch strategy {
	case StrategyBroad:
		return "early round, mapping the topic broadly"
	case StrategyDeep:
		return fmt.Sprintf("filling %d missing critical item(s)", len(eval.MissingCriticalInfo))
	case StrategyVerification:
		return fmt.Sprintf("score %.0f, verifying collected evidence", eval.OverallScore)
	default:
		return "widening context through comparison"
	}
}
