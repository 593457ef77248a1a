package script

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldprobe/rigger/internal/engine"
	"github.com/fieldprobe/rigger/internal/eventloop"
)

type fakeConn struct {
	mu    sync.Mutex
	lines []string
	fns   []func(int)
}

func (c *fakeConn) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *fakeConn) OnExit(fn func(status int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

func (c *fakeConn) Output() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := parseScript([]byte(src))
	if err != nil {
		t.Fatalf("parseScript: %v", err)
	}
	return s
}

func TestCompileMapsSteps(t *testing.T) {
	s := mustParse(t, `name: mapping
steps:
  - type: log
    message: hello
  - type: send
    send: ping
  - type: delay
    duration: 1s
  - type: repeat
    count: 2
    steps:
      - type: send
        send: poll
      - type: delay
        duration: 100ms
  - type: wait_exit
`)

	prog, err := Compile(s, nil, Deps{Conn: &fakeConn{}, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := prog.Steps(); got != 7 {
		t.Fatalf("expected 7 program nodes, got %d", got)
	}
}

func TestCompileRequiresGateway(t *testing.T) {
	send := mustParse(t, "name: s\nsteps:\n  - type: send\n    send: ping\n")
	if _, err := Compile(send, nil, Deps{Logger: zerolog.Nop()}); err == nil || !strings.Contains(err.Error(), "requires a gateway") {
		t.Fatalf("expected gateway error for send, got %v", err)
	}

	wait := mustParse(t, "name: w\nsteps:\n  - type: wait_exit\n")
	if _, err := Compile(wait, nil, Deps{Logger: zerolog.Nop()}); err == nil || !strings.Contains(err.Error(), "requires a gateway") {
		t.Fatalf("expected gateway error for wait_exit, got %v", err)
	}
}

func TestCompileMissingRequiredVar(t *testing.T) {
	s := mustParse(t, `name: needy
vars:
  - name: image
    required: true
steps:
  - type: log
    message: "{{.image}}"
`)

	if _, err := Compile(s, nil, Deps{Logger: zerolog.Nop()}); err == nil || !strings.Contains(err.Error(), "missing required variable") {
		t.Fatalf("expected missing variable error, got %v", err)
	}
}

func TestCompiledProgramRuns(t *testing.T) {
	s := mustParse(t, `name: probe
vars:
  - name: target
    default: dev1
steps:
  - type: log
    message: "starting {{.target}}"
  - type: repeat
    count: 2
    steps:
      - type: send
        send: "ping {{.target}}"
  - type: send
    send: done
`)

	conn := &fakeConn{}
	var out bytes.Buffer
	prog, err := Compile(s, nil, Deps{Conn: conn, Logger: zerolog.Nop(), Stdout: &out})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	loop := eventloop.New(eventloop.WithClock(eventloop.NewFakeClock()))
	e := engine.New(prog, loop, engine.WithLogger(zerolog.Nop()))
	value, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected final value 0, got %d", value)
	}

	want := []string{"ping dev1", "ping dev1", "done"}
	got := conn.Output()
	if len(got) != len(want) {
		t.Fatalf("expected %d sends, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("send %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !strings.Contains(out.String(), "starting dev1") {
		t.Fatalf("expected log output, got %q", out.String())
	}
}

func TestCompiledExecHaltsOnFailure(t *testing.T) {
	s := mustParse(t, `name: build-check
steps:
  - type: exec
    command: "exit 7"
  - type: log
    message: unreachable
`)

	var out bytes.Buffer
	prog, err := Compile(s, nil, Deps{Logger: zerolog.Nop(), Stdout: &out})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	loop := eventloop.New(eventloop.WithClock(eventloop.NewFakeClock()))
	e := engine.New(prog, loop, engine.WithLogger(zerolog.Nop()))
	value, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != 7 {
		t.Fatalf("expected halting value 7, got %d", value)
	}
	if strings.Contains(out.String(), "unreachable") {
		t.Fatal("expected run to halt before the log step")
	}
}

func TestCompiledExecContinuesOnError(t *testing.T) {
	s := mustParse(t, `name: tolerant
steps:
  - type: exec
    command: "exit 3"
    continue_on_error: true
  - type: log
    message: kept going
`)

	var out bytes.Buffer
	prog, err := Compile(s, nil, Deps{Logger: zerolog.Nop(), Stdout: &out})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	loop := eventloop.New(eventloop.WithClock(eventloop.NewFakeClock()))
	e := engine.New(prog, loop, engine.WithLogger(zerolog.Nop()))
	value, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected final value 0, got %d", value)
	}
	if !strings.Contains(out.String(), "kept going") {
		t.Fatalf("expected run to continue, got %q", out.String())
	}
}

func TestCompiledExecCapturesStdout(t *testing.T) {
	s := mustParse(t, `name: echoing
steps:
  - type: exec
    command: "echo bridge ready"
`)

	var out bytes.Buffer
	prog, err := Compile(s, nil, Deps{Logger: zerolog.Nop(), Stdout: &out})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	loop := eventloop.New(eventloop.WithClock(eventloop.NewFakeClock()))
	e := engine.New(prog, loop, engine.WithLogger(zerolog.Nop()))
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "bridge ready") {
		t.Fatalf("expected command output, got %q", out.String())
	}
}
