// Package journal provides the SQLite-backed run journal.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType categorizes journal entries.
type EventType string

const (
	// Run lifecycle events
	EventRunStarted   EventType = "run.started"
	EventRunFinished  EventType = "run.finished"
	EventRunHalted    EventType = "run.halted"
	EventRunSuspended EventType = "run.suspended"
	EventRunResumed   EventType = "run.resumed"

	// Step events
	EventStepExecute  EventType = "step.execute"
	EventStepDelay    EventType = "step.delay"
	EventStepRepeat   EventType = "step.repeat"
	EventStepWaitExit EventType = "step.wait_exit"
)

// StepEvent is one append-only journal entry for a run.
type StepEvent struct {
	// ID is the unique identifier for the entry.
	ID string `json:"id"`

	// RunID identifies the run the entry belongs to.
	RunID string `json:"run_id"`

	// Seq is the entry's position within its run.
	Seq int64 `json:"seq"`

	// Type categorizes the entry.
	Type EventType `json:"type"`

	// At is when the entry was recorded.
	At time.Time `json:"at"`

	// Payload contains step-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks required fields.
func (e *StepEvent) Validate() error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidEvent)
	}
	if strings.TrimSpace(string(e.Type)) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	if e.Seq < 0 {
		return fmt.Errorf("%w: seq must not be negative", ErrInvalidEvent)
	}
	return nil
}
