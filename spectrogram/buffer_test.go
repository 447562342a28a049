package spectrogram

import (
	"sync"
	"testing"
)

func TestRolling(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		appends int
	}{
		{name: "empty", max: 3, appends: 0},
		{name: "partially filled", max: 5, appends: 3},
		{name: "exactly full", max: 4, appends: 4},
		{name: "wrapped", max: 3, appends: 7},
		{name: "single column", max: 1, appends: 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRolling(tc.max)
			for i := 0; i < tc.appends; i++ {
				r.Append([]float64{float64(i)})
			}

			want := min(tc.appends, tc.max)
			if got := r.Len(); got != want {
				t.Fatalf("Len() = %d, want %d", got, want)
			}
			snap := r.Snapshot()
			if len(snap) != want {
				t.Fatalf("Snapshot() returned %d columns, want %d", len(snap), want)
			}
			first := tc.appends - want
			for i, col := range snap {
				if col[0] != float64(first+i) {
					t.Errorf("column %d = %v, want %d", i, col, first+i)
				}
			}
		})
	}
}

func TestRollingSnapshotIsCopy(t *testing.T) {
	r := NewRolling(2)
	col := []float64{1, 2}
	r.Append(col)

	snap := r.Snapshot()
	snap[0][0] = 42
	if got := r.Snapshot()[0][0]; got != 1 {
		t.Errorf("modifying a snapshot changed the buffer: got %f", got)
	}
}

func TestRollingReset(t *testing.T) {
	r := NewRolling(2)
	r.Append([]float64{1})
	r.Append([]float64{2})
	r.Append([]float64{3})
	r.Reset()
	if got := r.Len(); got != 0 {
		t.Errorf("Len() after Reset() = %d, want 0", got)
	}
	r.Append([]float64{4})
	if snap := r.Snapshot(); len(snap) != 1 || snap[0][0] != 4 {
		t.Errorf("Snapshot() after Reset() = %v", snap)
	}
	if got := r.Cap(); got != 2 {
		t.Errorf("Cap() = %d, want 2", got)
	}
}

func TestRollingConcurrent(t *testing.T) {
	r := NewRolling(50)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.Append([]float64{float64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := r.Snapshot()
			for j := 1; j < len(snap); j++ {
				if snap[j][0] != snap[j-1][0]+1 {
					t.Errorf("snapshot out of order: %v before %v", snap[j-1][0], snap[j][0])
					return
				}
			}
		}
	}()
	wg.Wait()
	if got := r.Len(); got != 50 {
		t.Errorf("Len() = %d, want 50", got)
	}
}
