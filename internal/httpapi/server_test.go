package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap/zaptest"

	"github.com/orbiterhq/deepresearch/internal/config"
	"github.com/orbiterhq/deepresearch/internal/streaming"
	"github.com/orbiterhq/deepresearch/internal/workflows"
)

type fakeRun struct {
	id    string
	runID string
}

func (f fakeRun) GetID() string    { return f.id }
func (f fakeRun) GetRunID() string { return f.runID }
func (f fakeRun) Get(ctx context.Context, valuePtr interface{}) error {
	return nil
}
func (f fakeRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return nil
}

type fakeEncodedValue struct {
	payload []byte
}

func (f fakeEncodedValue) HasValue() bool { return len(f.payload) > 0 }
func (f fakeEncodedValue) Get(valuePtr interface{}) error {
	return json.Unmarshal(f.payload, valuePtr)
}

type fakeWorkflowClient struct {
	started  []workflows.ResearchInput
	startErr error
	status   *workflows.StatusSnapshot
	queryErr error
}

func (f *fakeWorkflowClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	if len(args) == 1 {
		if input, ok := args[0].(workflows.ResearchInput); ok {
			f.started = append(f.started, input)
		}
	}
	return fakeRun{id: options.ID, runID: "run-1"}, nil
}

func (f *fakeWorkflowClient) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	payload, _ := json.Marshal(f.status)
	return fakeEncodedValue{payload: payload}, nil
}

func newTestServer(t *testing.T, wc WorkflowClient) *Server {
	t.Helper()
	return NewServer(ServerDeps{
		Temporal:  wc,
		Events:    streaming.NewManager(nil, zaptest.NewLogger(t)),
		TaskQueue: "deepresearch",
		Tuning: func() config.ResearchConfig {
			return config.ResearchConfig{
				MaxRounds:          5,
				EarlyStopThreshold: 85,
				MinCoverageScore:   70,
				MaxResultsPerQuery: 10,
			}
		},
		Logger: zaptest.NewLogger(t),
	})
}

func TestSubmitResearch(t *testing.T) {
	wc := &fakeWorkflowClient{}
	srv := newTestServer(t, wc)

	body, _ := json.Marshal(map[string]any{
		"topic":   "solid state batteries",
		"context": "automotive",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/research", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.WorkflowID, "research-"))
	assert.Equal(t, "run-1", resp.RunID)

	require.Len(t, wc.started, 1)
	input := wc.started[0]
	assert.Equal(t, "solid state batteries", input.Topic)
	assert.Equal(t, "automotive", input.Context)
	// tuning defaults flow into the submission
	assert.Equal(t, 5, input.MaxRounds)
	assert.Equal(t, 85.0, input.EarlyStopThreshold)
}

func TestSubmitResearchRequiresTopic(t *testing.T) {
	srv := newTestServer(t, &fakeWorkflowClient{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/research", strings.NewReader(`{"topic":"  "}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitResearchMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeWorkflowClient{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetResearchStatus(t *testing.T) {
	wc := &fakeWorkflowClient{
		status: &workflows.StatusSnapshot{
			Round:     2,
			MaxRounds: 5,
			Completed: false,
		},
	}
	srv := newTestServer(t, wc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research/research-abc", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Status)
	assert.Equal(t, 2, resp.Status.Round)
}

func TestGetResearchUnknownRun(t *testing.T) {
	wc := &fakeWorkflowClient{queryErr: fmt.Errorf("workflow not found")}
	srv := newTestServer(t, wc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/research/nope", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSSEStreamDeliversEvents(t *testing.T) {
	srv := newTestServer(t, &fakeWorkflowClient{})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream/sse?run_id=run-7", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	// the connection comment arrives before any events
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, ":"))

	go func() {
		// give the subscription a moment to land
		time.Sleep(100 * time.Millisecond)
		srv.events.Publish("run-7", streaming.Event{
			RunID: "run-7",
			Type:  streaming.EventRoundStarted,
			Round: 1,
		})
	}()

	var sawEvent, sawData bool
	for !sawData {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			assert.Equal(t, "event: ROUND_STARTED", strings.TrimSpace(line))
			sawEvent = true
		}
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, `"run_id":"run-7"`)
			sawData = true
		}
	}
	assert.True(t, sawEvent)
}

func TestSSERequiresRunID(t *testing.T) {
	srv := newTestServer(t, &fakeWorkflowClient{})

	req := httptest.NewRequest(http.MethodGet, "/stream/sse", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
