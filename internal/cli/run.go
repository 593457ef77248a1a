// Package cli provides the run command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fieldprobe/rigger/internal/engine"
	"github.com/fieldprobe/rigger/internal/eventloop"
	"github.com/fieldprobe/rigger/internal/gateway"
	"github.com/fieldprobe/rigger/internal/journal"
	"github.com/fieldprobe/rigger/internal/logging"
	"github.com/fieldprobe/rigger/internal/program"
	"github.com/fieldprobe/rigger/internal/script"
	"github.com/fieldprobe/rigger/internal/tui"
)

var (
	runVars        []string
	runGatewayCmd  []string
	runGatewayDir  string
	runJournalPath string
	runNoJournal   bool
	runWatch       bool
	runTheme       string

	// run over SSH flags
	runSSHHost       string
	runSSHUser       string
	runSSHKeyPath    string
	runSSHKnownHosts string
	runSSHCommand    string
	runSSHInsecure   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "script variable as key=value (repeatable)")
	runCmd.Flags().StringSliceVar(&runGatewayCmd, "gateway", nil, "bridge command to launch locally")
	runCmd.Flags().StringVar(&runGatewayDir, "gateway-dir", "", "working directory for the bridge command")
	runCmd.Flags().StringVar(&runJournalPath, "journal", "", "journal database path")
	runCmd.Flags().BoolVar(&runNoJournal, "no-journal", false, "do not record this run in the journal")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "show a live view while the run progresses")
	runCmd.Flags().StringVar(&runTheme, "theme", "default", "live view theme (default, high-contrast)")

	runCmd.Flags().StringVar(&runSSHHost, "ssh", "", "run the bridge on a remote host (host or host:port)")
	runCmd.Flags().StringVar(&runSSHUser, "ssh-user", "", "SSH user (default: current user)")
	runCmd.Flags().StringVar(&runSSHKeyPath, "ssh-key", "", "SSH private key path")
	runCmd.Flags().StringVar(&runSSHKnownHosts, "ssh-known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	runCmd.Flags().StringVar(&runSSHCommand, "ssh-command", "", "bridge command to start on the remote host")
	runCmd.Flags().BoolVar(&runSSHInsecure, "ssh-insecure", false, "skip host key verification")
}

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script",
	Long: "Run a script by name (resolved through the script search paths)\n" +
		"or by file path. Steps advance one per tick; a failing step halts\n" +
		"the run unless the script continues on error.",
	Example: `  # Run a builtin script against a local bridge process
  rigger run smoke-test --gateway ./bridgectl --gateway-dir ./fw

  # Render variables and watch the run live
  rigger run flash-verify --var image=router.bin --watch

  # Start the bridge on a remote host
  rigger run drain-exit --ssh probe.lab --ssh-key ~/.ssh/id_ed25519 --ssh-command "bridgectl attach"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScript(cmd.Context(), args[0])
	},
}

func runScript(parent context.Context, name string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := loadScript(name)
	if err != nil {
		return err
	}
	vars, err := parseVarFlags(runVars)
	if err != nil {
		return err
	}

	conn, closeConn, err := connectGateway(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	prog, err := script.Compile(s, vars, script.Deps{
		Conn:   conn,
		Logger: logging.Component("script"),
		Stdout: os.Stdout,
	})
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	sink, err := buildSink(s, runID)
	if err != nil {
		return err
	}

	loop := eventloop.New()

	if runWatch {
		if !hasTTY() {
			return errors.New("watch mode requires an interactive terminal")
		}
		return runWithView(ctx, s, prog, loop, sink, runID)
	}

	e := engine.New(prog, loop, engine.WithSink(sink), engine.WithRunID(runID))

	progress := startProgress(fmt.Sprintf("Running %s", s.Name))
	value, err := e.Run(ctx)
	if err != nil {
		progress.Fail(err)
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run %s interrupted", runID)
		}
		return err
	}
	progress.Done()

	if e.Halted() {
		return fmt.Errorf("run %s halted with value %d", runID, value)
	}
	fmt.Printf("run %s finished with value %d\n", runID, value)
	return nil
}

// runWithView drives the run behind a live terminal view. The view
// owns the terminal; run events reach it through the sink bridge.
func runWithView(ctx context.Context, s *script.Script, prog *program.Program, loop *eventloop.Loop, sink engine.EventSink, runID string) error {
	p := tui.NewProgram(tui.RunInfo{
		Script: s.Name,
		RunID:  runID,
		Steps:  prog.Steps(),
		Theme:  runTheme,
	}, loop.Stop)

	e := engine.New(prog, loop,
		engine.WithSink(tui.NewSink(p, sink)),
		engine.WithRunID(runID))

	type result struct {
		value int64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := e.Run(ctx)
		done <- result{value: value, err: err}
		p.Send(tui.RunDoneMsg{Value: value, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		loop.Stop()
		<-done
		return err
	}

	res := <-done
	if res.err != nil && !errors.Is(res.err, context.Canceled) {
		return res.err
	}
	if e.Halted() {
		return fmt.Errorf("run %s halted with value %d", runID, res.value)
	}
	fmt.Printf("run %s finished with value %d\n", runID, res.value)
	return nil
}

// connectGateway starts the bridge named by flags or config. With no
// bridge configured it returns a nil Conn; scripts that never touch
// the bridge run fine without one.
func connectGateway(ctx context.Context) (gateway.Conn, func(), error) {
	noop := func() {}

	if runSSHHost != "" {
		if runSSHCommand == "" {
			return nil, noop, errors.New("--ssh requires --ssh-command")
		}
		host, port, err := splitSSHHost(runSSHHost)
		if err != nil {
			return nil, noop, err
		}
		gw, err := gateway.DialSSH(gateway.SSHConfig{
			Host:            host,
			Port:            port,
			User:            runSSHUser,
			KeyPath:         runSSHKeyPath,
			KnownHostsPath:  runSSHKnownHosts,
			InsecureHostKey: runSSHInsecure,
			Command:         runSSHCommand,
			RingSize:        GetConfig().Gateway.RingSize,
			Logger:          logging.Component("gateway"),
		})
		if err != nil {
			return nil, noop, err
		}
		return gw, func() { gw.Stop() }, nil
	}

	command := runGatewayCmd
	if len(command) == 0 {
		command = GetConfig().Gateway.Command
	}
	if len(command) == 0 {
		return nil, noop, nil
	}

	dir := runGatewayDir
	if dir == "" {
		dir = GetConfig().Gateway.Dir
	}

	gw, err := gateway.New(gateway.Config{
		Command:  command,
		Dir:      dir,
		RingSize: GetConfig().Gateway.RingSize,
		Logger:   logging.Component("gateway"),
	})
	if err != nil {
		return nil, noop, err
	}
	if err := gw.Start(ctx); err != nil {
		return nil, noop, err
	}
	return gw, func() { gw.Stop() }, nil
}

func buildSink(s *script.Script, runID string) (engine.EventSink, error) {
	if runNoJournal || (GetConfig().Journal.Disabled && runJournalPath == "") {
		return engine.NoopSink{}, nil
	}
	database, err := openJournal(runJournalPath)
	if err != nil {
		return nil, err
	}
	return journal.NewSink(database, map[string]string{"script": s.Name}), nil
}

func loadScript(nameOrPath string) (*script.Script, error) {
	if looksLikePath(nameOrPath) {
		return script.Load(nameOrPath)
	}
	name, err := normalizeScriptName(nameOrPath)
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return script.Find(cwd, name, GetConfig().Scripts.Paths...)
}

func looksLikePath(value string) bool {
	if strings.ContainsRune(value, os.PathSeparator) {
		return true
	}
	ext := filepath.Ext(value)
	return ext == ".yaml" || ext == ".yml"
}

func splitSSHHost(value string) (string, int, error) {
	if !strings.Contains(value, ":") {
		return value, 0, nil
	}
	host, portText, err := net.SplitHostPort(value)
	if err != nil {
		return "", 0, fmt.Errorf("invalid ssh host %q: %w", value, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("invalid ssh port %q", portText)
	}
	return host, port, nil
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
