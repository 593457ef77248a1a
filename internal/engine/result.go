package engine

import "time"

// StepResult is the outcome of advancing one step: continue after a
// delay, or halt the run's timer.
type StepResult struct {
	delay time.Duration
	halt  bool
}

// ContinueAfter schedules the next step after d.
func ContinueAfter(d time.Duration) StepResult {
	return StepResult{delay: d}
}

// Halt unregisters the run's timer. The run resumes only if something
// external re-arms it.
func Halt() StepResult {
	return StepResult{halt: true}
}

// Delay returns the rescheduling delay.
func (r StepResult) Delay() time.Duration {
	return r.delay
}

// Halted reports whether the timer should be unregistered.
func (r StepResult) Halted() bool {
	return r.halt
}
