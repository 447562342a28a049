package spectrogram

import (
	"sync"
)

// Rolling keeps the most recent columns of a live spectrogram.
// It is safe for one writer and any number of concurrent readers.
type Rolling struct {
	mu      sync.Mutex
	columns [][]float64
	next    int // position of the next write
	full    bool
}

// NewRolling returns a buffer holding at most maxColumns columns.
func NewRolling(maxColumns int) *Rolling {
	if maxColumns < 1 {
		maxColumns = 1
	}
	return &Rolling{
		columns: make([][]float64, maxColumns),
	}
}

// Append stores a column, evicting the oldest one once the buffer is full.
// The buffer takes ownership of the column.
func (r *Rolling) Append(column []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.columns[r.next] = column
	r.next++
	if r.next == len(r.columns) {
		r.next = 0
		r.full = true
	}
}

// Snapshot returns a deep copy of the stored columns, oldest first.
func (r *Rolling) Snapshot() [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.lenLocked()
	start := 0
	if r.full {
		start = r.next
	}
	out := make([][]float64, n)
	for i := range out {
		src := r.columns[(start+i)%len(r.columns)]
		out[i] = make([]float64, len(src))
		copy(out[i], src)
	}
	return out
}

func (r *Rolling) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *Rolling) lenLocked() int {
	if r.full {
		return len(r.columns)
	}
	return r.next
}

// Cap returns the maximum number of columns.
func (r *Rolling) Cap() int {
	return len(r.columns)
}

// Reset drops all columns.
func (r *Rolling) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.columns {
		r.columns[i] = nil
	}
	r.next = 0
	r.full = false
}
