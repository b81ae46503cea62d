package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/orbiterhq/deepresearch/internal/streaming"
)

// EmitResearchUpdateInput is one progress event from the workflow. Emission
// is fire-and-forget: the workflow invokes this with a short timeout and a
// single attempt, and ignores the result.
type EmitResearchUpdateInput struct {
	RunID     string              `json:"run_id"`
	EventType streaming.EventType `json:"event_type"`
	Round     int                 `json:"round,omitempty"`
	Message   string              `json:"message,omitempty"`
	Data      map[string]any      `json:"data,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// EmitResearchUpdate publishes a progress event to the streaming manager.
func (a *Activities) EmitResearchUpdate(ctx context.Context, input EmitResearchUpdateInput) error {
	activity.GetLogger(ctx).Debug("research event",
		"run_id", input.RunID,
		"type", string(input.EventType),
		"round", input.Round,
		"message", input.Message,
	)
	if a.events == nil {
		return nil
	}
	a.events.Publish(input.RunID, streaming.Event{
		Type:      input.EventType,
		Round:     input.Round,
		Message:   input.Message,
		Data:      input.Data,
		Timestamp: input.Timestamp,
	})
	return nil
}
