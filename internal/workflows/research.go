// Package workflows holds the research orchestration loop. The workflow owns
// all run state through the research.State manager; activities only return
// deltas for it to apply.
package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orbiterhq/deepresearch/internal/activities"
	"github.com/orbiterhq/deepresearch/internal/research"
	"github.com/orbiterhq/deepresearch/internal/streaming"
)

const (
	// interRoundDelay throttles LLM/search call rate between rounds.
	interRoundDelay = 300 * time.Millisecond

	// keepAliveInterval paces lightweight progress notifications so idle
	// proxies do not drop long-running runs.
	keepAliveInterval = 25 * time.Second

	defaultMaxResultsPerQuery = 10
)

// ResearchWorkflow runs one bounded research investigation:
// evaluate → plan → search → process → score → audit, round after round,
// until a stop condition fires, then synthesizes the final report. Failures
// inside the loop degrade to a partial report; the workflow only errors on
// invalid input.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (research.ResearchReport, error) {
	logger := workflow.GetLogger(ctx)
	if strings.TrimSpace(input.Topic) == "" {
		return research.ResearchReport{}, fmt.Errorf("topic is required")
	}

	runID := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("starting research run",
		"run_id", runID,
		"topic", input.Topic,
		"max_rounds", input.MaxRounds,
	)

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		// degradation happens inside the activities; retrying would
		// double-spend the provider quota
		RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	emitCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	persistCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})

	query := input.Topic
	if input.Context != "" {
		query = input.Topic + " " + input.Context
	}
	state := research.NewState(input.Topic, query, input.RequiredInfo, research.Limits{
		MaxRounds:          input.MaxRounds,
		EarlyStopThreshold: input.EarlyStopThreshold,
		MinCoverageScore:   input.MinCoverageScore,
	}, workflow.Now(ctx).UTC())

	if err := workflow.SetQueryHandler(ctx, StatusQuery, func() (StatusSnapshot, error) {
		completed, reason := state.Completed()
		return StatusSnapshot{
			Round:         state.Round(),
			MaxRounds:     state.Limits().MaxRounds,
			RawResults:    state.RawResultCount(),
			Categorized:   state.CategorizedCount(),
			CoverageScore: state.Snapshot().CoverageScore,
			QualityScore:  state.Snapshot().QualityScore,
			Completed:     completed,
			Reason:        reason,
		}, nil
	}); err != nil {
		logger.Warn("status query handler registration failed", "error", err)
	}

	emit := func(evtType streaming.EventType, round int, message string, data map[string]any) {
		_ = workflow.ExecuteActivity(emitCtx, ActivityEmitUpdate, activities.EmitResearchUpdateInput{
			RunID:     runID,
			EventType: evtType,
			Round:     round,
			Message:   message,
			Data:      data,
			Timestamp: workflow.Now(ctx).UTC(),
		})
	}

	emit(streaming.EventRunStarted, 0, fmt.Sprintf("researching %q", input.Topic), nil)

	// Keep-alive: no state mutation, cancelled unconditionally on exit.
	keepAliveCtx, cancelKeepAlive := workflow.WithCancel(ctx)
	workflow.Go(keepAliveCtx, func(gctx workflow.Context) {
		for {
			if err := workflow.Sleep(gctx, keepAliveInterval); err != nil {
				return
			}
			_ = workflow.ExecuteActivity(
				workflow.WithActivityOptions(gctx, workflow.ActivityOptions{
					StartToCloseTimeout: 5 * time.Second,
					RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
				}),
				ActivityEmitUpdate, activities.EmitResearchUpdateInput{
					RunID:     runID,
					EventType: streaming.EventKeepAlive,
					Round:     state.Round(),
					Timestamp: workflow.Now(gctx).UTC(),
				})
		}
	})
	defer cancelKeepAlive()

	var lastEval research.SufficiencyEvaluation
	loopErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("research loop panic: %v", r)
			}
		}()
		lastEval, err = runRounds(actCtx, state, input, runID, emit)
		return err
	}()
	if loopErr != nil {
		logger.Error("research loop failed, emitting partial report",
			"run_id", runID,
			"error", loopErr,
		)
		state.MarkComplete(research.StopReasonInternalFail)
		// cleanup runs on a disconnected context so the partial report
		// still goes out when the run itself was cancelled
		dctx, _ := workflow.NewDisconnectedContext(ctx)
		report := assembleReport(dctx, state, lastEval, research.FallbackSummary(state.Snapshot()), input.OutputMode)
		report.Partial = true
		report.Error = loopErr.Error()
		_ = workflow.ExecuteActivity(
			workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
				StartToCloseTimeout: 5 * time.Second,
				RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
			}),
			ActivityEmitUpdate, activities.EmitResearchUpdateInput{
				RunID:     runID,
				EventType: streaming.EventRunFailed,
				Round:     state.Round(),
				Message:   loopErr.Error(),
				Timestamp: workflow.Now(dctx).UTC(),
			}).Get(dctx, nil)
		_ = workflow.ExecuteActivity(
			workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
				StartToCloseTimeout: 30 * time.Second,
				RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
			}),
			ActivityPersistReport, activities.PersistReportInput{
				RunID:  runID,
				Status: "failed",
				Report: report,
			}).Get(dctx, nil)
		return report, nil
	}

	_, reason := state.Completed()
	emit(streaming.EventReportStarted, state.Round(), reason, nil)

	snap := state.Snapshot()
	summary := research.FallbackSummary(snap)
	var synth activities.SynthesizeReportResult
	if err := workflow.ExecuteActivity(actCtx, ActivitySynthesizeReport, activities.SynthesizeReportInput{
		RunID:    runID,
		Snapshot: snap,
	}).Get(ctx, &synth); err != nil {
		logger.Warn("synthesis activity failed, using deterministic summary",
			"run_id", runID,
			"error", err,
		)
	} else {
		summary = synth.Summary
	}

	report := assembleReport(ctx, state, lastEval, summary, input.OutputMode)
	emit(streaming.EventReportCompleted, state.Round(), "", map[string]any{
		"sources":  report.SourceCount,
		"findings": len(report.Summary.KeyFindings),
	})

	if err := workflow.ExecuteActivity(persistCtx, ActivityPersistReport, activities.PersistReportInput{
		RunID:  runID,
		Status: "completed",
		Report: report,
	}).Get(ctx, nil); err != nil {
		logger.Warn("report persistence failed", "run_id", runID, "error", err)
	}

	_ = workflow.ExecuteActivity(emitCtx, ActivityEmitUpdate, activities.EmitResearchUpdateInput{
		RunID:     runID,
		EventType: streaming.EventRunCompleted,
		Round:     state.Round(),
		Message:   reason,
		Timestamp: workflow.Now(ctx).UTC(),
	}).Get(ctx, nil)

	logger.Info("research run complete",
		"run_id", runID,
		"rounds", report.TotalRounds,
		"sources", report.SourceCount,
		"reason", reason,
	)
	return report, nil
}

// runRounds executes the round loop until a stop condition fires. It returns
// the last sufficiency evaluation for the terminal report's metrics.
func runRounds(
	ctx workflow.Context,
	state *research.State,
	input ResearchInput,
	runID string,
	emit func(streaming.EventType, int, string, map[string]any),
) (research.SufficiencyEvaluation, error) {
	logger := workflow.GetLogger(ctx)
	maxResults := input.MaxResultsPerQuery
	if maxResults <= 0 {
		maxResults = defaultMaxResultsPerQuery
	}

	var lastEval research.SufficiencyEvaluation
	for {
		if stop, reason := state.ShouldStop(); stop {
			state.MarkComplete(reason)
			return lastEval, nil
		}

		round := state.StartRound()
		emit(streaming.EventRoundStarted, round, "", nil)

		snap := state.Snapshot()
		rules := research.EvaluateRules(snap)
		var judged activities.JudgeSufficiencyResult
		if err := workflow.ExecuteActivity(ctx, ActivityJudgeSufficiency, activities.JudgeSufficiencyInput{
			RunID:    runID,
			Snapshot: snap,
		}).Get(ctx, &judged); err != nil {
			// the activity degrades internally; an error here means the
			// call itself never completed
			logger.Warn("sufficiency activity failed, using volume fallback", "error", err)
			judged.Judgment = research.LLMJudgment{Score: research.FallbackLLMScore(snap.RawResultCount)}
		}
		eval := research.Combine(rules, judged.Judgment, state.Limits().MinCoverageScore)
		lastEval = eval
		emit(streaming.EventEvaluation, round, eval.Rationale, map[string]any{
			"rule_score":    eval.RuleScore,
			"llm_score":     eval.LLMScore,
			"overall_score": eval.OverallScore,
			"sufficient":    eval.IsSufficient,
		})

		// stopping here instead of after the search avoids one wasted
		// round once the evaluator is satisfied
		if eval.IsSufficient && round > 1 {
			state.MarkComplete(research.StopReasonSufficient)
			state.RecordExplorationStep(research.ExplorationStep{
				Round:         round,
				ResultCount:   0,
				NewInfoCount:  0,
				CoverageScore: snap.CoverageScore,
				QualityScore:  snap.QualityScore,
				Decision:      string(research.RecommendStop),
				Rationale:     research.StopReasonSufficient,
				Timestamp:     workflow.Now(ctx).UTC(),
			})
			return lastEval, nil
		}

		plan := research.GenerateSearchPlan(snap, eval, input.DateRestriction)
		if len(plan.Queries) == 0 {
			state.MarkComplete(research.StopReasonNoAvenues)
			return lastEval, nil
		}
		if eval.Recommendation == research.RecommendPivot {
			emit(streaming.EventPivot, round, string(plan.Strategy), nil)
		}

		var dispatched activities.DispatchSearchesResult
		if err := workflow.ExecuteActivity(ctx, ActivityDispatchSearches, activities.DispatchSearchesInput{
			RunID:              runID,
			Queries:            plan.Queries,
			MaxResultsPerQuery: maxResults,
		}).Get(ctx, &dispatched); err != nil {
			// degrade to an empty round; stall detection bounds this
			logger.Warn("search dispatch failed, continuing with empty results", "error", err)
		}
		queryTexts := make([]string, 0, len(plan.Queries))
		for _, q := range plan.Queries {
			queryTexts = append(queryTexts, q.Query)
		}
		state.RecordQueries(queryTexts)
		emit(streaming.EventSearchCompleted, round, "", map[string]any{
			"queries": len(plan.Queries),
			"results": len(dispatched.Items),
		})

		fresh := state.AddRawResults(dispatched.Items)

		newInfo := 0
		if len(fresh) > 0 {
			emit(streaming.EventProcessing, round, "", map[string]any{"items": len(fresh)})
			var classified activities.ClassifyResultsResult
			if err := workflow.ExecuteActivity(ctx, ActivityClassifyResults, activities.ClassifyResultsInput{
				RunID: runID,
				Topic: input.Topic,
				Items: fresh,
			}).Get(ctx, &classified); err != nil {
				logger.Warn("classification failed, round yields no new info", "error", err)
			}
			for _, entry := range classified.Entries {
				if state.AddCategorizedInfo(entry) {
					newInfo++
				}
			}
		}

		coverage, quality := research.AuditScores(state.RawResultCount(), state.CategorizedCount())
		state.UpdateScores(coverage, quality)
		state.RecordExplorationStep(research.ExplorationStep{
			Round:         round,
			Queries:       queryTexts,
			ResultCount:   len(dispatched.Items),
			NewInfoCount:  newInfo,
			CoverageScore: coverage,
			QualityScore:  quality,
			Decision:      string(eval.Recommendation),
			Rationale:     plan.Rationale,
			Timestamp:     workflow.Now(ctx).UTC(),
		})
		emit(streaming.EventRoundCompleted, round, "", map[string]any{
			"new_results": len(fresh),
			"new_info":    newInfo,
			"coverage":    coverage,
			"quality":     quality,
		})

		if err := workflow.Sleep(ctx, interRoundDelay); err != nil {
			return lastEval, err
		}
	}
}

// assembleReport builds the terminal artifact from whatever the state
// manager currently holds.
func assembleReport(
	ctx workflow.Context,
	state *research.State,
	eval research.SufficiencyEvaluation,
	summary research.ReportSummary,
	mode OutputMode,
) research.ResearchReport {
	snap := state.Snapshot()
	report := research.ResearchReport{
		Topic:       snap.Topic,
		TotalRounds: snap.Round,
		Elapsed:     workflow.Now(ctx).UTC().Sub(state.StartedAt()),
		SourceCount: snap.RawResultCount,
		Summary:     summary,
		Metrics: research.QualityMetrics{
			CoverageScore: snap.CoverageScore,
			QualityScore:  snap.QualityScore,
			Confidence:    eval.Confidence,
			Limitations:   research.Limitations(snap, eval),
		},
	}
	if mode == OutputDetailed || (mode == OutputAdaptive && snap.RawResultCount < 15) {
		report.Trace = state.Steps()
		report.Evidence = state.RawResults()
	}
	return report
}
