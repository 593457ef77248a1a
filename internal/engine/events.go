package engine

import (
	"context"
	"time"
)

// EventType labels run events.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunFinished  EventType = "run.finished"
	EventRunHalted    EventType = "run.halted"
	EventRunSuspended EventType = "run.suspended"
	EventRunResumed   EventType = "run.resumed"
	EventStepExecute  EventType = "step.execute"
	EventStepDelay    EventType = "step.delay"
	EventStepRepeat   EventType = "step.repeat"
	EventStepWaitExit EventType = "step.wait_exit"
)

// Event is one observable moment of a run.
type Event struct {
	RunID     string        `json:"run_id"`
	Seq       int64         `json:"seq"`
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Value     int64         `json:"value,omitempty"`
	Proceed   bool          `json:"proceed,omitempty"`
	Delay     time.Duration `json:"delay,omitempty"`
	Depth     int           `json:"depth,omitempty"`
	Remaining int           `json:"remaining,omitempty"`
	Status    int           `json:"status,omitempty"`
}

// EventSink receives run events.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// NoopSink drops all events.
type NoopSink struct{}

// Emit ignores events.
func (NoopSink) Emit(ctx context.Context, event Event) error {
	return nil
}

// Close is a no-op.
func (NoopSink) Close() error {
	return nil
}
