package strategy

import "golb/internal/backend"

// LeastResponseTime scans the snapshot for the healthy backend with the
// lowest EMA latency. Ties are broken by first-encountered order.
type LeastResponseTime struct{}

// NewLeastResponseTime returns a LeastResponseTime strategy. It carries no
// state of its own — every call is a fresh scan over the given snapshot.
func NewLeastResponseTime() *LeastResponseTime {
	return &LeastResponseTime{}
}

func (l *LeastResponseTime) Name() string { return "least-response-time" }

func (l *LeastResponseTime) Select(snapshot []*backend.Record) *backend.Record {
	var best *backend.Record
	bestEMA := 0
	for _, cand := range snapshot {
		if !cand.Healthy() {
			continue
		}
		ema := cand.EMALatencyMs()
		if best == nil || ema < bestEMA {
			best = cand
			bestEMA = ema
		}
	}
	return best
}
