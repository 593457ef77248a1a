// Package cli provides progress feedback for long-running commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressStep prints "label... done (1.2s)" feedback. A nil step
// swallows every call, so callers never branch on whether progress
// output is enabled.
type progressStep struct {
	out     io.Writer
	started time.Time
}

// startProgress begins a progress line on stderr, or returns nil when
// progress output is suppressed (flag, env, or no terminal).
func startProgress(label string) *progressStep {
	if !progressEnabled() {
		return nil
	}
	return newProgress(os.Stderr, label, time.Now())
}

func newProgress(out io.Writer, label string, started time.Time) *progressStep {
	fmt.Fprintf(out, "%s... ", label)
	return &progressStep{out: out, started: started}
}

// Done finishes the line with the elapsed time.
func (p *progressStep) Done() {
	if p == nil {
		return
	}
	fmt.Fprintf(p.out, "done (%s)\n", formatDuration(time.Since(p.started)))
}

// Fail finishes the line with the failure reason.
func (p *progressStep) Fail(err error) {
	if p == nil {
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.out, "failed")
}

func progressEnabled() bool {
	if noProgress {
		return false
	}
	if _, ok := os.LookupEnv("RIGGER_NO_PROGRESS"); ok {
		return false
	}
	if _, ok := os.LookupEnv("NO_PROGRESS"); ok {
		return false
	}
	return hasTTY()
}

// formatDuration trims sub-perceptual precision from elapsed times.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
