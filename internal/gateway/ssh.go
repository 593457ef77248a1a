package gateway

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

var (
	// ErrMissingHost indicates no remote host was provided.
	ErrMissingHost = errors.New("ssh host is required")
	// ErrMissingKeyPath indicates no private key path was provided.
	ErrMissingKeyPath = errors.New("ssh key path is required")
)

const defaultSSHTimeout = 10 * time.Second

// SSHConfig describes a bridge command run on a remote host.
type SSHConfig struct {
	Host            string
	Port            int
	User            string
	KeyPath         string
	KnownHostsPath  string
	InsecureHostKey bool
	Command         string
	RingSize        int
	Timeout         time.Duration
	Prompt          HostKeyPrompt
	Logger          zerolog.Logger
}

func (c *SSHConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrMissingHost
	}
	if strings.TrimSpace(c.Command) == "" {
		return ErrMissingCommand
	}
	if strings.TrimSpace(c.KeyPath) == "" {
		return ErrMissingKeyPath
	}
	return nil
}

func (c *SSHConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 22
	}
	if c.User == "" {
		if u, err := user.Current(); err == nil {
			c.User = u.Username
		}
	}
	if c.RingSize <= 0 {
		c.RingSize = defaultRingSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultSSHTimeout
	}
}

// SSHGateway runs the bridge command on a remote host over SSH. It
// offers the same Send/OnExit/Output surface as Gateway.
type SSHGateway struct {
	logger zerolog.Logger
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	output *LineRing

	writeMu sync.Mutex

	mu      sync.Mutex
	exited  bool
	status  int
	exitFns []func(int)
}

// DialSSH connects to the remote host, starts cfg.Command in a session,
// and returns a gateway over its I/O.
func DialSSH(cfg SSHConfig) (*SSHGateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	auth, err := keyAuth(cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	hostKeys, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}

	g := &SSHGateway{
		logger: cfg.Logger,
		client: client,
		sess:   sess,
		stdin:  stdin,
		output: NewLineRing(cfg.RingSize),
	}

	if err := sess.Start(cfg.Command); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("start remote command: %w", err)
	}

	go captureLines(stdout, g.output)
	go captureLines(stderr, g.output)
	go g.waitExit()

	g.logger.Info().Str("addr", addr).Str("command", cfg.Command).Msg("ssh gateway started")
	return g, nil
}

// Send writes one line to the remote command's stdin.
func (g *SSHGateway) Send(line string) error {
	g.mu.Lock()
	exited := g.exited
	g.mu.Unlock()
	if exited {
		return ErrGatewayExited
	}

	payload := line
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}

	g.writeMu.Lock()
	_, err := io.WriteString(g.stdin, payload)
	g.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	return nil
}

// OnExit registers fn to run once when the remote command exits. If it
// has already exited, fn fires asynchronously right away.
func (g *SSHGateway) OnExit(fn func(status int)) {
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
func (g *SSHGateway) Output() []string {
	return g.output.Snapshot()
}

// Running reports whether the remote command is still running.
func (g *SSHGateway) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.exited
}

// Stop terminates the remote command and closes the connection.
func (g *SSHGateway) Stop() error {
	g.mu.Lock()
	exited := g.exited
	g.mu.Unlock()
	if exited {
		return nil
	}

	_ = g.sess.Signal(ssh.SIGKILL)
	if err := g.sess.Close(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (g *SSHGateway) waitExit() {
	err := g.sess.Wait()

	status := 0
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitStatus()
		} else {
			status = 1
		}
	}

	g.client.Close()

	g.mu.Lock()
	g.exited = true
	g.status = status
	fns := g.exitFns
	g.exitFns = nil
	g.mu.Unlock()

	g.logger.Info().Int("status", status).Msg("ssh gateway exited")
	for _, fn := range fns {
		fn(status)
	}
}

func keyAuth(keyPath string) ([]ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", keyPath, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func hostKeyCallback(cfg SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := cfg.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return buildKnownHostsCallback([]string{path}, path, cfg.Prompt, cfg.Logger)
}

var _ Conn = (*SSHGateway)(nil)
