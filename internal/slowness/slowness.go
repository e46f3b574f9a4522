// Package slowness implements the policy that watches per-request latency
// samples and quarantines a backend once it has been persistently slow.
package slowness

import (
	"time"

	"golb/internal/backend"
)

// Config holds the thresholds that drive the slowness policy.
type Config struct {
	SlowThresholdMs         int
	SlownessWindowSize      int
	SlownessThresholdRatio  float64
}

// Observe feeds one user-request latency sample into rec and applies the
// slowness policy: add to the sliding window, update the EMA, and — if the
// window has enough samples and the slow ratio meets the threshold while the
// backend is not already in cooldown — mark it slow.
//
// Health-probe latencies must never be passed to Observe; only user-request
// samples participate in slowness detection.
func Observe(rec *backend.Record, ms int, at time.Time, cfg Config) {
	rec.RecordLatency(ms, at)

	if rec.InSlowCooldown() {
		return
	}
	if !rec.Window.HasEnough(cfg.SlownessWindowSize) {
		return
	}
	if rec.Window.SlowRatio(cfg.SlowThresholdMs) < cfg.SlownessThresholdRatio {
		return
	}
	rec.MarkSlow(at)
}
