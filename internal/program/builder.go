package program

import "time"

// Builder assembles a program. Append methods target the innermost open
// repeat block; BeginRepeat and EndRepeat open and close blocks.
// Methods chain; the first bracketing error sticks and is reported by
// Build.
type Builder struct {
	root   []Node
	scopes []*Repeat
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) append(n Node) {
	if b.err != nil {
		return
	}
	if len(b.scopes) > 0 {
		top := b.scopes[len(b.scopes)-1]
		top.Body = append(top.Body, n)
		return
	}
	b.root = append(b.root, n)
}

// Execute appends a callback step.
func (b *Builder) Execute(fn ExecFunc) *Builder {
	b.append(Execute{Fn: fn})
	return b
}

// Delay appends a fixed pause.
func (b *Builder) Delay(d time.Duration) *Builder {
	b.append(Delay{Duration: d})
	return b
}

// BeginRepeat opens a repeat block. Steps appended until the matching
// EndRepeat form the block body; delay is applied before every
// iteration and once more after the last.
func (b *Builder) BeginRepeat(delay time.Duration, count int) *Builder {
	if b.err != nil {
		return b
	}
	rep := &Repeat{Count: count, Delay: delay}
	b.append(rep)
	b.scopes = append(b.scopes, rep)
	return b
}

// EndRepeat closes the innermost open repeat block.
func (b *Builder) EndRepeat() *Builder {
	if b.err != nil {
		return b
	}
	if len(b.scopes) == 0 {
		b.err = ErrUnmatchedLoop
		return b
	}
	b.scopes = b.scopes[:len(b.scopes)-1]
	return b
}

// WaitExit appends a step that suspends the program until sig fires.
func (b *Builder) WaitExit(sig ExitSignaler) *Builder {
	b.append(WaitExit{Signal: sig})
	return b
}

// Err returns the first bracketing error recorded so far, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build validates bracket balance and returns the finished program.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.scopes) != 0 {
		return nil, ErrUnmatchedLoop
	}
	root := make([]Node, len(b.root))
	copy(root, b.root)
	return &Program{root: root}, nil
}
