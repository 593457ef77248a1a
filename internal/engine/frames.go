package engine

import (
	"sync"

	"github.com/fieldprobe/rigger/internal/program"
)

// frame is an open execution scope on the run stack.
type frame interface {
	// advance performs one step and reports how to reschedule.
	advance(e *Engine) StepResult
}

// collectionFrame drains a pending node list front to back: either the
// program root or one unrolled repeat iteration.
type collectionFrame struct {
	pending []program.Node
}

// repeatFrame counts down iterations of a repeat template. The counter
// lives here; the template node is never mutated.
type repeatFrame struct {
	node      *program.Repeat
	remaining int
}

func (f *collectionFrame) advance(e *Engine) StepResult {
	if len(f.pending) == 0 {
		// Drained: control falls through to the parent on the next
		// immediate tick.
		e.popFrame()
		return ContinueAfter(0)
	}

	node := f.pending[0]
	f.pending = f.pending[1:]

	switch n := node.(type) {
	case program.Execute:
		return e.execStep(n)
	case program.Delay:
		e.emit(EventStepDelay, func(ev *Event) { ev.Delay = n.Duration })
		return ContinueAfter(n.Duration)
	case *program.Repeat:
		rf := &repeatFrame{node: n, remaining: n.Count}
		e.pushFrame(rf)
		return rf.advance(e)
	case program.WaitExit:
		return e.waitStep(n)
	}

	// Unreachable with the sealed node set.
	return Halt()
}

func (f *repeatFrame) advance(e *Engine) StepResult {
	if f.remaining <= 0 {
		e.popFrame()
		e.emit(EventStepRepeat, func(ev *Event) {
			ev.Delay = f.node.Delay
			ev.Remaining = 0
		})
		return ContinueAfter(f.node.Delay)
	}

	f.remaining--
	e.pushFrame(&collectionFrame{pending: copyNodes(f.node.Body)})
	e.emit(EventStepRepeat, func(ev *Event) {
		ev.Delay = f.node.Delay
		ev.Remaining = f.remaining
	})
	return ContinueAfter(f.node.Delay)
}

func (e *Engine) execStep(n program.Execute) StepResult {
	value, proceed := n.Fn(e)
	e.storeValue(value)

	e.emit(EventStepExecute, func(ev *Event) {
		ev.Value = value
		ev.Proceed = proceed
	})

	if !proceed {
		e.markHalted()
		return Halt()
	}
	return ContinueAfter(0)
}

func (e *Engine) waitStep(n program.WaitExit) StepResult {
	e.emit(EventStepWaitExit, nil)
	e.emit(EventRunSuspended, nil)
	e.logger.Debug().Msg("run suspended until exit signal")

	release := e.loop.Hold()

	var once sync.Once
	n.Signal.OnExit(func(status int) {
		once.Do(func() {
			e.logger.Debug().Int("status", status).Msg("exit signal received, resuming")
			e.emit(EventRunResumed, func(ev *Event) { ev.Status = status })
			e.loop.AddTimer(0, e.tick)
			release()
		})
	})

	return Halt()
}
