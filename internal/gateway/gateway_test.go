package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeFakeBridge(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-bridge.sh")

	script := `#!/bin/sh
echo "bridge up"
while IFS= read -r line; do
  if [ "$line" = "quit" ]; then
    echo "bye"
    exit 0
  fi
  echo "ack: $line"
done
`

	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if strings.Contains(line, want) {
			return true
		}
	}
	return false
}

func TestGatewayCapturesOutputAndExit(t *testing.T) {
	path := writeFakeBridge(t)

	g, err := New(Config{Command: []string{path}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	exitCh := make(chan int, 4)
	g.OnExit(func(status int) { exitCh <- status })

	require.Eventually(t, func() bool {
		return containsLine(g.Output(), "bridge up")
	}, 2*time.Second, 10*time.Millisecond, "expected startup banner")
	require.True(t, g.Running())

	require.NoError(t, g.Send("ping"))
	require.Eventually(t, func() bool {
		return containsLine(g.Output(), "ack: ping")
	}, 2*time.Second, 10*time.Millisecond, "expected ack line")

	require.NoError(t, g.Send("quit"))

	select {
	case status := <-exitCh:
		require.Equal(t, 0, status)
	case <-time.After(2 * time.Second):
		t.Fatal("exit callback not fired")
	}

	select {
	case <-exitCh:
		t.Fatal("exit callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}

	require.False(t, g.Running())
}

func TestGatewayOnExitAfterExit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short-bridge.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 3\n"), 0755))

	g, err := New(Config{Command: []string{path}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	require.Eventually(t, func() bool {
		return !g.Running()
	}, 2*time.Second, 10*time.Millisecond, "expected process exit")

	exitCh := make(chan int, 1)
	g.OnExit(func(status int) { exitCh <- status })

	select {
	case status := <-exitCh:
		require.Equal(t, 3, status)
	case <-time.After(2 * time.Second):
		t.Fatal("exit callback not fired for exited process")
	}

	status, exited := g.ExitStatus()
	require.True(t, exited)
	require.Equal(t, 3, status)
}

func TestGatewayStopTerminatesProcess(t *testing.T) {
	path := writeFakeBridge(t)

	g, err := New(Config{Command: []string{path}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	exitCh := make(chan int, 1)
	g.OnExit(func(status int) { exitCh <- status })

	require.NoError(t, g.Stop())

	select {
	case <-exitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("exit callback not fired after Stop")
	}
	require.False(t, g.Running())
	require.ErrorIs(t, g.Send("ping"), ErrGatewayExited)
}

func TestGatewayValidation(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrMissingCommand)

	_, err = New(Config{Command: []string{"   "}})
	require.ErrorIs(t, err, ErrMissingCommand)
}

func TestGatewaySendBeforeStart(t *testing.T) {
	g, err := New(Config{Command: []string{"/bin/cat"}})
	require.NoError(t, err)
	require.ErrorIs(t, g.Send("ping"), ErrNotStarted)
}

func TestSSHConfigValidation(t *testing.T) {
	_, err := DialSSH(SSHConfig{})
	require.ErrorIs(t, err, ErrMissingHost)

	_, err = DialSSH(SSHConfig{Host: "bridge01"})
	require.ErrorIs(t, err, ErrMissingCommand)

	_, err = DialSSH(SSHConfig{Host: "bridge01", Command: "bridgectl attach"})
	require.ErrorIs(t, err, ErrMissingKeyPath)
}
