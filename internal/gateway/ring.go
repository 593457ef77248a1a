package gateway

import "sync"

// LineRing keeps the most recent N lines of bridge output.
type LineRing struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
}

// NewLineRing returns a ring buffer sized for the provided line count.
func NewLineRing(size int) *LineRing {
	if size <= 0 {
		size = 1
	}
	return &LineRing{lines: make([]string, size)}
}

// Add appends a line, evicting the oldest once the ring is full.
func (r *LineRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.lines)
	r.lines[(r.head+r.count)%size] = line
	if r.count < size {
		r.count++
	} else {
		r.head = (r.head + 1) % size
	}
}

// Snapshot returns the buffered lines in arrival order.
func (r *LineRing) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.lines[(r.head+i)%len(r.lines)]
	}
	return out
}

// Len reports how many lines are currently buffered.
func (r *LineRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
