package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingCommand indicates no bridge command was provided.
	ErrMissingCommand = errors.New("gateway command is required")
	// ErrNotStarted indicates the bridge process has not been started.
	ErrNotStarted = errors.New("gateway has not started")
	// ErrGatewayExited indicates the bridge process is no longer running.
	ErrGatewayExited = errors.New("gateway process exited")
)

const defaultRingSize = 200

// Conn is the surface compiled scripts talk to: line-oriented input,
// buffered output, and the process exit signal.
type Conn interface {
	Send(line string) error
	OnExit(fn func(status int))
	Output() []string
}

// Config describes the bridge process a Gateway runs.
type Config struct {
	Command  []string
	Dir      string
	Env      []string
	RingSize int
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (c *Config) validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return ErrMissingCommand
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.RingSize <= 0 {
		c.RingSize = defaultRingSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Gateway runs an external bridge process under a pty and exposes its
// line-oriented I/O plus a one-shot exit signal.
type Gateway struct {
	cfg    Config
	logger zerolog.Logger
	output *LineRing

	writeMu sync.Mutex

	mu        sync.Mutex
	cmd       *exec.Cmd
	pty       *os.File
	started   bool
	startedAt time.Time
	exited    bool
	status    int
	exitFns   []func(int)
}

// New validates cfg and prepares a gateway. Start launches the process.
func New(cfg Config) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &Gateway{
		cfg:    cfg,
		logger: cfg.Logger,
		output: NewLineRing(cfg.RingSize),
	}, nil
}

// Start launches the bridge under a pty and begins capturing its output.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return fmt.Errorf("gateway already started")
	}
	g.mu.Unlock()

	cmd := exec.CommandContext(ctx, g.cfg.Command[0], g.cfg.Command[1:]...)
	cmd.Dir = g.cfg.Dir
	cmd.Env = os.Environ()
	if len(g.cfg.Env) > 0 {
		cmd.Env = append(cmd.Env, g.cfg.Env...)
	}

	ptyFile, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}

	g.mu.Lock()
	g.cmd = cmd
	g.pty = ptyFile
	g.started = true
	g.startedAt = g.cfg.Now().UTC()
	g.mu.Unlock()

	go captureLines(ptyFile, g.output)
	go g.waitExit(cmd, ptyFile)

	g.logger.Info().Str("command", strings.Join(g.cfg.Command, " ")).Msg("gateway started")
	return nil
}

// Send writes one line to the bridge stdin, appending a newline when the
// caller did not include one.
func (g *Gateway) Send(line string) error {
	g.mu.Lock()
	ptyFile := g.pty
	exited := g.exited
	g.mu.Unlock()

	if ptyFile == nil {
		return ErrNotStarted
	}
	if exited {
		return ErrGatewayExited
	}

	payload := line
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}

	g.writeMu.Lock()
	_, err := io.WriteString(ptyFile, payload)
	g.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write input: %w", err)
	}

	g.logger.Debug().Str("line", line).Msg("sent to gateway")
	return nil
}

// OnExit registers fn to run once when the bridge process exits. If the
// process has already exited, fn fires asynchronously right away.
// Registrations fire at most once.
func (g *Gateway) OnExit(fn func(status int)) {
	g.mu.Lock()
	if g.exited {
		status := g.status
		g.mu.Unlock()
		go fn(status)
		return
	}
	g.exitFns = append(g.exitFns, fn)
	g.mu.Unlock()
}

// Output returns the buffered output lines, oldest first.
func (g *Gateway) Output() []string {
	return g.output.Snapshot()
}

// Running reports whether the bridge process is alive.
func (g *Gateway) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started && !g.exited
}

// ExitStatus returns the process exit status and whether it has exited.
func (g *Gateway) ExitStatus() (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, g.exited
}

// Stop terminates the bridge process. Exit callbacks still fire through
// the normal exit path.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	cmd := g.cmd
	exited := g.exited
	g.mu.Unlock()

	if cmd == nil || cmd.Process == nil || exited {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill gateway: %w", err)
	}
	return nil
}

// captureLines reads r until it fails (EOF, or EIO once a pty's child
// side closes) and stores complete lines in the ring.
func captureLines(r io.Reader, ring *LineRing) {
	buf := make([]byte, 4096)
	pending := make([]byte, 0, 4096)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			lines, remainder := splitLines(pending)
			pending = remainder
			for _, line := range lines {
				ring.Add(line)
			}
		}
		if err != nil {
			if len(pending) > 0 {
				ring.Add(strings.TrimRight(string(pending), "\r"))
			}
			return
		}
	}
}

func (g *Gateway) waitExit(cmd *exec.Cmd, ptyFile *os.File) {
	err := cmd.Wait()

	status := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		} else {
			status = 1
		}
	}

	ptyFile.Close()

	g.mu.Lock()
	g.exited = true
	g.status = status
	fns := g.exitFns
	g.exitFns = nil
	uptime := g.cfg.Now().UTC().Sub(g.startedAt)
	g.mu.Unlock()

	g.logger.Info().Int("status", status).Dur("uptime", uptime).Msg("gateway exited")
	for _, fn := range fns {
		fn(status)
	}
}

func splitLines(buffer []byte) ([]string, []byte) {
	var lines []string
	for {
		i := bytes.IndexByte(buffer, '\n')
		if i < 0 {
			return lines, buffer
		}
		lines = append(lines, strings.TrimRight(string(buffer[:i]), "\r"))
		buffer = buffer[i+1:]
	}
}

var _ Conn = (*Gateway)(nil)
