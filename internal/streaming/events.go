package streaming

import (
	"encoding/json"
	"time"
)

// EventType names one progress event in a research run's lifecycle.
type EventType string

const (
	EventRunStarted      EventType = "RUN_STARTED"
	EventRoundStarted    EventType = "ROUND_STARTED"
	EventRoundCompleted  EventType = "ROUND_COMPLETED"
	EventSearchCompleted EventType = "SEARCH_COMPLETED"
	EventProcessing      EventType = "PROCESSING"
	EventEvaluation      EventType = "EVALUATION"
	EventPivot           EventType = "PIVOT"
	EventKeepAlive       EventType = "KEEP_ALIVE"
	EventReportStarted   EventType = "REPORT_STARTED"
	EventReportCompleted EventType = "REPORT_COMPLETED"
	EventRunCompleted    EventType = "RUN_COMPLETED"
	EventRunFailed       EventType = "RUN_FAILED"
)

// Event is one progress notification for a research run.
type Event struct {
	RunID     string         `json:"run_id"`
	Type      EventType      `json:"type"`
	Round     int            `json:"round,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Seq       uint64         `json:"seq"`
}

// Marshal returns the event as JSON for SSE frames, WS messages and the
// Redis mirror.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}
