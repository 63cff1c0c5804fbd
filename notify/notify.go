// Package notify defines the outbound notification port for escrow state
// changes. Delivery is fire-and-forget: a failing sink must never roll back
// or fail the financial transaction that produced the event.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event is a state-change fact handed to the sink after a successful commit.
type Event struct {
	Type        string            `json:"type"`
	EscrowID    string            `json:"escrowId"`
	MilestoneID string            `json:"milestoneId,omitempty"`
	ActorID     string            `json:"actorId"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// Sink receives escrow state-change events.
type Sink interface {
	Deliver(ctx context.Context, evt Event) error
}

// LogSink writes events to the structured logger. It is the default sink
// when no webhook endpoint is configured.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(ctx context.Context, evt Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "escrow event",
		"type", evt.Type,
		"escrow_id", evt.EscrowID,
		"milestone_id", evt.MilestoneID,
		"actor_id", evt.ActorID,
	)
	return nil
}

// NoopSink discards events. Used by tests that do not assert on delivery.
type NoopSink struct{}

// Deliver implements Sink.
func (NoopSink) Deliver(context.Context, Event) error { return nil }
