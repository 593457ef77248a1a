// Package program defines the step program model: a closed set of step
// nodes and the builder that assembles them into an immutable program
// tree.
package program

import (
	"errors"
	"time"
)

// ErrUnmatchedLoop indicates unbalanced repeat brackets: a repeat block
// was closed with none open, or a program was built with blocks still
// open.
var ErrUnmatchedLoop = errors.New("unmatched repeat loop")

// Handle is the view of a running program exposed to step callbacks.
type Handle interface {
	// LastValue returns the most recently stored step value.
	LastValue() int64

	// Stop aborts the whole run.
	Stop()
}

// ExecFunc is the callback payload of an Execute step. The returned
// value is stored as the run's result, including on the final call;
// proceed false ends the run after this step.
type ExecFunc func(h Handle) (value int64, proceed bool)

// ExitSignaler delivers a one-shot process exit notification. A
// registered callback fires at most once, even if the underlying
// process signals more than once.
type ExitSignaler interface {
	OnExit(fn func(status int))
}

// Node is one step of a program. The set of implementations is fixed:
// Execute, Delay, Repeat, WaitExit.
type Node interface {
	isNode()
}

// Execute invokes a callback and records its value.
type Execute struct {
	Fn ExecFunc
}

// Delay pauses the program for a fixed duration.
type Delay struct {
	Duration time.Duration
}

// Repeat runs Body Count times, pausing Delay before each iteration and
// once more when the count is exhausted. Body is a template: every
// iteration runs against a fresh copy, so state mutated during one
// iteration cannot leak into the next.
type Repeat struct {
	Count int
	Delay time.Duration
	Body  []Node
}

// WaitExit suspends the program until Signal reports process exit.
// There is no timeout: if the signal never fires the run stays
// suspended until stopped.
type WaitExit struct {
	Signal ExitSignaler
}

func (Execute) isNode()  {}
func (Delay) isNode()    {}
func (*Repeat) isNode()  {}
func (WaitExit) isNode() {}

// Program is a validated, immutable step program.
type Program struct {
	root []Node
}

// Root returns the top-level step sequence.
func (p *Program) Root() []Node {
	return p.root
}

// Steps returns the total number of nodes in the program, nested repeat
// bodies included.
func (p *Program) Steps() int {
	return countNodes(p.root)
}

func countNodes(nodes []Node) int {
	total := 0
	for _, n := range nodes {
		total++
		if rep, ok := n.(*Repeat); ok {
			total += countNodes(rep.Body)
		}
	}
	return total
}
