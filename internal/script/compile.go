package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldprobe/rigger/internal/gateway"
	"github.com/fieldprobe/rigger/internal/program"
)

// Deps carries the collaborators compiled steps close over.
type Deps struct {
	Conn   gateway.Conn
	Logger zerolog.Logger
	Stdout io.Writer
	Env    []string
	Dir    string
}

// Compile renders s with vars and lowers its steps onto a program.
// Steps that talk to the bridge (send, wait_exit) require a Conn.
func Compile(s *Script, vars map[string]string, deps Deps) (*program.Program, error) {
	if s == nil {
		return nil, fmt.Errorf("script is required")
	}

	data, err := resolveVars(s, vars)
	if err != nil {
		return nil, fmt.Errorf("compile script %q: %w", s.Name, err)
	}

	b := program.NewBuilder()
	if err := compileSteps(b, s.Steps, data, deps); err != nil {
		return nil, fmt.Errorf("compile script %q: %w", s.Name, err)
	}

	prog, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("compile script %q: %w", s.Name, err)
	}
	return prog, nil
}

func compileSteps(b *program.Builder, steps []Step, data map[string]string, deps Deps) error {
	for i, step := range steps {
		if err := compileStep(b, step, data, deps); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func compileStep(b *program.Builder, step Step, data map[string]string, deps Deps) error {
	switch step.Type {
	case StepTypeExec:
		command, err := renderText(string(step.Type), step.Command, data)
		if err != nil {
			return err
		}
		b.Execute(execStep(command, step.ContinueOnError, deps))

	case StepTypeSend:
		if deps.Conn == nil {
			return fmt.Errorf("send step requires a gateway")
		}
		line, err := renderText(string(step.Type), step.Send, data)
		if err != nil {
			return err
		}
		b.Execute(sendStep(line, step.ContinueOnError, deps))

	case StepTypeLog:
		message, err := renderText(string(step.Type), step.Message, data)
		if err != nil {
			return err
		}
		b.Execute(logStep(message, deps))

	case StepTypeDelay:
		duration, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("invalid delay duration: %w", err)
		}
		b.Delay(duration)

	case StepTypeRepeat:
		var delay time.Duration
		if step.Duration != "" {
			parsed, err := time.ParseDuration(step.Duration)
			if err != nil {
				return fmt.Errorf("invalid repeat duration: %w", err)
			}
			delay = parsed
		}
		b.BeginRepeat(delay, step.Count)
		if err := compileSteps(b, step.Steps, data, deps); err != nil {
			return err
		}
		b.EndRepeat()

	case StepTypeWaitExit:
		if deps.Conn == nil {
			return fmt.Errorf("wait_exit step requires a gateway")
		}
		b.WaitExit(deps.Conn)

	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}

	return nil
}

// execStep runs a shell command when its program step advances. The
// exit code becomes the step value; a failure halts the run unless the
// step continues on error.
func execStep(command string, continueOnError bool, deps Deps) program.ExecFunc {
	return func(h program.Handle) (int64, bool) {
		cmd := exec.Command("/bin/sh", "-c", command)
		cmd.Dir = deps.Dir
		if len(deps.Env) > 0 {
			cmd.Env = append(os.Environ(), deps.Env...)
		}

		output, err := cmd.CombinedOutput()
		if deps.Stdout != nil && len(output) > 0 {
			deps.Stdout.Write(output)
		}

		code := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = 1
			}
			deps.Logger.Warn().Int("exit_code", code).Str("command", command).Msg("exec step failed")
		} else {
			deps.Logger.Debug().Str("command", command).Msg("exec step finished")
		}

		return int64(code), err == nil || continueOnError
	}
}

func sendStep(line string, continueOnError bool, deps Deps) program.ExecFunc {
	return func(h program.Handle) (int64, bool) {
		if err := deps.Conn.Send(line); err != nil {
			deps.Logger.Warn().Err(err).Str("line", line).Msg("send step failed")
			return 1, continueOnError
		}
		deps.Logger.Debug().Str("line", line).Msg("sent to gateway")
		return 0, true
	}
}

func logStep(message string, deps Deps) program.ExecFunc {
	return func(h program.Handle) (int64, bool) {
		deps.Logger.Info().Msg(message)
		if deps.Stdout != nil {
			fmt.Fprintln(deps.Stdout, message)
		}
		return 0, true
	}
}
