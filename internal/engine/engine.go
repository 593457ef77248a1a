// Package engine executes step programs on a timer event loop, one
// step per tick.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldprobe/rigger/internal/eventloop"
	"github.com/fieldprobe/rigger/internal/logging"
	"github.com/fieldprobe/rigger/internal/program"
)

// ErrAlreadyRunning indicates Run was called while a run is in flight.
var ErrAlreadyRunning = errors.New("engine already running")

// Engine drives one program at a time. Steps advance on the goroutine
// calling Run; callbacks must not block, since a blocked callback
// stalls every timer on the shared loop.
type Engine struct {
	prog   *program.Program
	loop   *eventloop.Loop
	logger zerolog.Logger
	sink   EventSink
	runID  string
	now    func() time.Time

	ctx context.Context

	mu      sync.Mutex
	frames  []frame
	value   int64
	seq     int64
	running bool
	halted  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSink attaches an event sink.
func WithSink(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New prepares a run of prog on loop.
func New(prog *program.Program, loop *eventloop.Loop, opts ...Option) *Engine {
	e := &Engine{
		prog:   prog,
		loop:   loop,
		logger: logging.Component("engine"),
		sink:   NoopSink{},
		runID:  uuid.New().String(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunID returns the run identifier.
func (e *Engine) RunID() string {
	return e.runID
}

// Run executes the program and returns the last stored step value. It
// blocks driving the event loop until the program drains, a step
// reports proceed false, Stop is called, or ctx ends.
func (e *Engine) Run(ctx context.Context) (int64, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	e.running = true
	e.halted = false
	e.value = 0
	e.seq = 0
	e.frames = []frame{&collectionFrame{pending: copyNodes(e.prog.Root())}}
	e.mu.Unlock()

	e.ctx = ctx

	e.logger.Info().
		Str("run_id", e.runID).
		Int("steps", e.prog.Steps()).
		Msg("run starting")
	e.emit(EventRunStarted, nil)

	e.loop.AddTimer(0, e.tick)
	err := e.loop.Run(ctx)

	e.mu.Lock()
	e.running = false
	value := e.value
	halted := e.halted
	e.mu.Unlock()

	if halted {
		e.emit(EventRunHalted, func(ev *Event) { ev.Value = value })
		e.logger.Info().Str("run_id", e.runID).Int64("value", value).Msg("run halted by step")
	} else {
		e.emit(EventRunFinished, func(ev *Event) { ev.Value = value })
		e.logger.Info().Str("run_id", e.runID).Int64("value", value).Msg("run finished")
	}

	if closeErr := e.sink.Close(); closeErr != nil {
		e.logger.Warn().Err(closeErr).Msg("failed to close event sink")
	}

	return value, err
}

// Stop aborts the run. Coarse: the whole loop stops; Run returns the
// value stored so far.
func (e *Engine) Stop() {
	e.loop.Stop()
}

// LastValue returns the most recently stored step value.
func (e *Engine) LastValue() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Halted reports whether the last run was cut short by a step.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// tick advances the run by one step. It is the loop timer callback.
func (e *Engine) tick() (time.Duration, bool) {
	top, depth := e.topFrame()
	if top == nil {
		return 0, false
	}

	res := top.advance(e)

	e.logger.Trace().
		Int("depth", depth).
		Dur("delay", res.Delay()).
		Bool("halt", res.Halted()).
		Msg("step advanced")

	if res.Halted() {
		return 0, false
	}
	return res.Delay(), true
}

func (e *Engine) topFrame() (frame, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frames) == 0 {
		return nil, 0
	}
	return e.frames[len(e.frames)-1], len(e.frames)
}

func (e *Engine) pushFrame(f frame) {
	e.mu.Lock()
	e.frames = append(e.frames, f)
	e.mu.Unlock()
}

func (e *Engine) popFrame() {
	e.mu.Lock()
	if len(e.frames) > 0 {
		e.frames = e.frames[:len(e.frames)-1]
	}
	e.mu.Unlock()
}

func (e *Engine) storeValue(v int64) {
	e.mu.Lock()
	e.value = v
	e.mu.Unlock()
}

func (e *Engine) markHalted() {
	e.mu.Lock()
	e.halted = true
	e.mu.Unlock()
}

func (e *Engine) emit(eventType EventType, build func(*Event)) {
	e.mu.Lock()
	e.seq++
	event := Event{
		RunID:     e.runID,
		Seq:       e.seq,
		Type:      eventType,
		Timestamp: e.now().UTC(),
		Depth:     len(e.frames),
	}
	e.mu.Unlock()

	if build != nil {
		build(&event)
	}

	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.sink.Emit(ctx, event); err != nil {
		e.logger.Warn().Err(err).Str("type", string(eventType)).Msg("failed to emit event")
	}
}

func copyNodes(nodes []program.Node) []program.Node {
	out := make([]program.Node, len(nodes))
	copy(out, nodes)
	return out
}
