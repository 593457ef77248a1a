// Package eventloop implements the timer loop that drives step
// programs: callers arm timer callbacks, the loop fires them one at a
// time on the Run goroutine, and each callback decides whether it
// re-arms.
package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldprobe/rigger/internal/logging"
)

// TimerFunc is invoked when a timer fires. Returning rearm true arms
// the timer to fire again after next; returning false removes it.
type TimerFunc func() (next time.Duration, rearm bool)

type timer struct {
	fn       TimerFunc
	deadline time.Time
}

// Loop fires timers on a single goroutine. Run blocks until no timers
// are armed and no holds remain, Stop is called, or the context ends.
type Loop struct {
	clock  Clock
	logger zerolog.Logger
	wake   chan struct{}

	mu      sync.Mutex
	timers  []*timer
	holds   int
	stopped bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// New returns an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  systemClock{},
		logger: logging.Component("eventloop"),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddTimer arms fn to fire after initial. Safe to call from any
// goroutine, before or during Run.
func (l *Loop) AddTimer(initial time.Duration, fn TimerFunc) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.timers = append(l.timers, &timer{fn: fn, deadline: l.clock.Now().Add(initial)})
	l.mu.Unlock()
	l.wakeUp()
}

// Hold keeps Run blocking while no timer is armed. The returned release
// is idempotent and safe to call from any goroutine.
func (l *Loop) Hold() (release func()) {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
			l.wakeUp()
		})
	}
}

// Stop unblocks Run. Idempotent, safe from any goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.logger.Debug().Msg("loop stop requested")
	l.wakeUp()
}

func (l *Loop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run dispatches timers until the loop drains or is stopped. Timer
// callbacks run here, one at a time; a callback that blocks stalls
// every other timer.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return nil
		}
		next := l.earliestLocked()
		holds := l.holds
		l.mu.Unlock()

		if next == nil {
			if holds == 0 {
				l.logger.Debug().Msg("loop drained")
				return nil
			}
			// Suspended: nothing armed yet, but a hold promises a
			// future AddTimer or release.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}

		remaining := next.deadline.Sub(l.clock.Now())
		if remaining > 0 {
			// Wait, then re-evaluate: a wake may have armed an even
			// earlier timer in the meantime.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			case <-l.clock.After(remaining):
			}
			continue
		}

		l.fire(next)
	}
}

func (l *Loop) earliestLocked() *timer {
	var next *timer
	for _, t := range l.timers {
		if next == nil || t.deadline.Before(next.deadline) {
			next = t
		}
	}
	return next
}

func (l *Loop) fire(t *timer) {
	l.mu.Lock()
	if l.stopped || !l.armedLocked(t) {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	next, rearm := t.fn()

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.armedLocked(t) {
		return
	}
	if rearm {
		t.deadline = l.clock.Now().Add(next)
		return
	}
	for i, candidate := range l.timers {
		if candidate == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return
		}
	}
}

func (l *Loop) armedLocked(t *timer) bool {
	for _, candidate := range l.timers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Armed reports how many timers are currently registered.
func (l *Loop) Armed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}
