package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/orbiterhq/deepresearch/internal/db"
	"github.com/orbiterhq/deepresearch/internal/metrics"
	"github.com/orbiterhq/deepresearch/internal/research"
)

// PersistReportInput stores the terminal artifact.
type PersistReportInput struct {
	RunID  string                  `json:"run_id"`
	Status string                  `json:"status"`
	Report research.ResearchReport `json:"report"`
}

// PersistReport writes the final report to the store. With persistence
// disabled it is a no-op; the report is still returned to the caller by the
// workflow either way.
func (a *Activities) PersistReport(ctx context.Context, input PersistReportInput) error {
	logger := activity.GetLogger(ctx)
	metrics.RunsCompleted.WithLabelValues(input.Status).Inc()
	metrics.RunDuration.Observe(input.Report.Elapsed.Seconds())
	metrics.RoundsPerRun.Observe(float64(input.Report.TotalRounds))
	if a.reports == nil {
		logger.Debug("report persistence disabled", "run_id", input.RunID)
		return nil
	}

	payload, err := json.Marshal(input.Report)
	if err != nil {
		metrics.ReportsPersisted.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal report %s: %w", input.RunID, err)
	}
	err = a.reports.SaveReport(ctx, &db.ReportRecord{
		RunID:       input.RunID,
		Topic:       input.Report.Topic,
		Status:      input.Status,
		Rounds:      input.Report.TotalRounds,
		SourceCount: input.Report.SourceCount,
		Coverage:    input.Report.Metrics.CoverageScore,
		Quality:     input.Report.Metrics.QualityScore,
		Confidence:  input.Report.Metrics.Confidence,
		ReportJSON:  payload,
	})
	if err != nil {
		metrics.ReportsPersisted.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReportsPersisted.WithLabelValues("ok").Inc()
	logger.Info("report persisted", "run_id", input.RunID, "status", input.Status)
	return nil
}
