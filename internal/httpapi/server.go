// Package httpapi exposes the research service over HTTP: run submission and
// status, plus SSE/WebSocket progress streams.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"

	"github.com/orbiterhq/deepresearch/internal/config"
	"github.com/orbiterhq/deepresearch/internal/db"
	"github.com/orbiterhq/deepresearch/internal/metrics"
	"github.com/orbiterhq/deepresearch/internal/streaming"
	"github.com/orbiterhq/deepresearch/internal/tracing"
	"github.com/orbiterhq/deepresearch/internal/workflows"
)

// WorkflowClient is the slice of the Temporal client the API needs; narrowed
// for test fakes.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Server carries the API dependencies.
type Server struct {
	temporal  WorkflowClient
	events    *streaming.Manager
	reports   db.ReportStore
	taskQueue string
	tuning    func() config.ResearchConfig
	auth      *Authenticator
	logger    *zap.Logger
}

// ServerDeps wires a Server. Reports may be nil (persistence disabled);
// Tuning supplies the current research defaults for submitted runs.
type ServerDeps struct {
	Temporal  WorkflowClient
	Events    *streaming.Manager
	Reports   db.ReportStore
	TaskQueue string
	Tuning    func() config.ResearchConfig
	Auth      *Authenticator
	Logger    *zap.Logger
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tuning == nil {
		deps.Tuning = func() config.ResearchConfig { return config.ResearchConfig{} }
	}
	return &Server{
		temporal:  deps.Temporal,
		events:    deps.Events,
		reports:   deps.Reports,
		taskQueue: deps.TaskQueue,
		tuning:    deps.Tuning,
		auth:      deps.Auth,
		logger:    deps.Logger,
	}
}

// Routes builds the API mux. Streaming endpoints share the run event manager
// with the emit activity.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/research", s.auth.Wrap(s.handleResearch))
	mux.HandleFunc("/api/v1/research/", s.auth.Wrap(s.handleResearchByID))
	mux.HandleFunc("/stream/sse", s.auth.Wrap(s.handleSSE))
	mux.HandleFunc("/stream/ws", s.auth.Wrap(s.handleWS))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

type submitRequest struct {
	Topic           string   `json:"topic"`
	Context         string   `json:"context,omitempty"`
	RequiredInfo    []string `json:"required_info,omitempty"`
	OutputMode      string   `json:"output_mode,omitempty"`
	MaxRounds       int      `json:"max_rounds,omitempty"`
	DateRestriction string   `json:"date_restriction,omitempty"`
}

type submitResponse struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
}

// handleResearch submits a run.
// POST /api/v1/research
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, span := tracing.StartSpan(r.Context(), "httpapi.SubmitResearch")
	defer span.End()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	tuning := s.tuning()
	input := workflows.ResearchInput{
		Topic:              req.Topic,
		Context:            req.Context,
		RequiredInfo:       req.RequiredInfo,
		OutputMode:         workflows.OutputMode(req.OutputMode),
		MaxRounds:          req.MaxRounds,
		DateRestriction:    req.DateRestriction,
		EarlyStopThreshold: tuning.EarlyStopThreshold,
		MinCoverageScore:   tuning.MinCoverageScore,
		MaxResultsPerQuery: tuning.MaxResultsPerQuery,
	}
	if input.MaxRounds <= 0 {
		input.MaxRounds = tuning.MaxRounds
	}

	workflowID := "research-" + uuid.NewString()
	run, err := s.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: s.taskQueue,
	}, workflows.ResearchWorkflow, input)
	if err != nil {
		s.logger.Error("workflow submission failed",
			zap.String("workflow_id", workflowID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to start research")
		return
	}

	metrics.RunsStarted.Inc()
	s.logger.Info("research run submitted",
		zap.String("workflow_id", workflowID),
		zap.String("topic", req.Topic),
	)
	writeJSON(w, http.StatusAccepted, submitResponse{
		RunID:      run.GetRunID(),
		WorkflowID: workflowID,
	})
}

type statusResponse struct {
	WorkflowID string                    `json:"workflow_id"`
	Status     *workflows.StatusSnapshot `json:"status,omitempty"`
	Report     *db.ReportRecord          `json:"report,omitempty"`
}

// handleResearchByID returns live status and, when available, the persisted
// report. GET /api/v1/research/{workflow_id}
func (s *Server) handleResearchByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx, span := tracing.StartSpan(r.Context(), "httpapi.GetResearch")
	defer span.End()

	workflowID := strings.TrimPrefix(r.URL.Path, "/api/v1/research/")
	if workflowID == "" || strings.Contains(workflowID, "/") {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	resp := statusResponse{WorkflowID: workflowID}

	if val, err := s.temporal.QueryWorkflow(ctx, workflowID, "", workflows.StatusQuery); err == nil {
		var status workflows.StatusSnapshot
		if val.Get(&status) == nil {
			resp.Status = &status
		}
	} else {
		s.logger.Debug("status query failed", zap.String("workflow_id", workflowID), zap.Error(err))
	}

	if s.reports != nil {
		rec, err := s.reports.GetReport(ctx, workflowID)
		switch {
		case err == nil:
			resp.Report = rec
		case errors.Is(err, db.ErrNotFound):
			// run still in flight or persistence disabled at run time
		default:
			s.logger.Warn("report lookup failed", zap.String("workflow_id", workflowID), zap.Error(err))
		}
	}

	if resp.Status == nil && resp.Report == nil {
		writeError(w, http.StatusNotFound, "unknown research run")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
