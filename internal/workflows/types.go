package workflows

// OutputMode controls how much of the run's internals land in the report.
type OutputMode string

const (
	OutputSummary  OutputMode = "summary"
	OutputDetailed OutputMode = "detailed"
	OutputAdaptive OutputMode = "adaptive"
)

// ResearchInput starts one research run.
type ResearchInput struct {
	Topic           string     `json:"topic"`
	Context         string     `json:"context,omitempty"`
	RequiredInfo    []string   `json:"required_info,omitempty"`
	OutputMode      OutputMode `json:"output_mode,omitempty"`
	MaxRounds       int        `json:"max_rounds,omitempty"`
	DateRestriction string     `json:"date_restriction,omitempty"`

	// Tuning, normally filled from service config by the submitter.
	EarlyStopThreshold float64 `json:"early_stop_threshold,omitempty"`
	MinCoverageScore   float64 `json:"min_coverage_score,omitempty"`
	MaxResultsPerQuery int     `json:"max_results_per_query,omitempty"`
}

// StatusSnapshot answers the workflow status query while a run is active.
type StatusSnapshot struct {
	Round         int     `json:"round"`
	MaxRounds     int     `json:"max_rounds"`
	RawResults    int     `json:"raw_results"`
	Categorized   int     `json:"categorized"`
	CoverageScore float64 `json:"coverage_score"`
	QualityScore  float64 `json:"quality_score"`
	Completed     bool    `json:"completed"`
	Reason        string  `json:"reason,omitempty"`
}

// StatusQuery is the workflow query name for StatusSnapshot.
const StatusQuery = "status"

// Activity names invoked by the research workflow.
const (
	ActivityDispatchSearches = "DispatchSearches"
	ActivityClassifyResults  = "ClassifyResults"
	ActivityJudgeSufficiency = "JudgeSufficiency"
	ActivitySynthesizeReport = "SynthesizeReport"
	ActivityEmitUpdate       = "EmitResearchUpdate"
	ActivityPersistReport    = "PersistReport"
)
