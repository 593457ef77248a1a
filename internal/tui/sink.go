// Package tui implements the live run view.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fieldprobe/rigger/internal/engine"
)

// EventMsg delivers an engine event to the view.
type EventMsg engine.Event

// RunDoneMsg reports the run's final value once the engine returns.
type RunDoneMsg struct {
	Value int64
	Err   error
}

// Sink forwards engine events into the view while passing them on to
// a wrapped sink, typically the journal.
type Sink struct {
	program *tea.Program
	next    engine.EventSink
}

// NewSink bridges engine events into program. next may be nil.
func NewSink(program *tea.Program, next engine.EventSink) *Sink {
	return &Sink{
		program: program,
		next:    next,
	}
}

// Emit implements engine.EventSink.
func (s *Sink) Emit(ctx context.Context, event engine.Event) error {
	if s.program != nil {
		s.program.Send(EventMsg(event))
	}
	if s.next != nil {
		return s.next.Emit(ctx, event)
	}
	return nil
}

// Close implements engine.EventSink.
func (s *Sink) Close() error {
	if s.next != nil {
		return s.next.Close()
	}
	return nil
}

var _ engine.EventSink = (*Sink)(nil)
