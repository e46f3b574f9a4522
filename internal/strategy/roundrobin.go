package strategy

import (
	"sync/atomic"

	"golb/internal/backend"
)

// RoundRobin distributes requests evenly across the snapshot using a
// lock-free atomic counter shared across concurrent calls. On each call it
// tries up to len(snapshot) candidates starting at the next counter value,
// defensively re-checking health before returning — the snapshot was taken
// moments earlier and a concurrent health transition may have happened
// since.
type RoundRobin struct {
	counter atomic.Uint64
}

// NewRoundRobin returns a RoundRobin strategy with its counter at zero.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (r *RoundRobin) Name() string { return "round-robin" }

func (r *RoundRobin) Select(snapshot []*backend.Record) *backend.Record {
	n := len(snapshot)
	if n == 0 {
		return nil
	}
	for attempt := 0; attempt < n; attempt++ {
		idx := (r.counter.Add(1) - 1) % uint64(n)
		cand := snapshot[idx]
		if cand.Healthy() {
			return cand
		}
	}
	return nil
}
