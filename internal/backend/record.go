// Package backend holds the per-backend state record and the discovery
// sources that produce the set of backend URLs the registry reconciles
// against.
package backend

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"

	"golb/internal/window"
)

// emaAge reproduces the spec's update law ema := (ema*4 + x) / 5, i.e.
// ema := ema*0.8 + x*0.2. VividCortex's variable-age moving average uses
// decay = 2/(age+1), so age=9 yields decay=0.2 exactly.
const emaAge = 9

// Record is the tracked state of one backend. Multi-field transitions
// (MarkSlow, ClearSlowCooldown, ApplyProbeResult) are single critical
// sections under mu, per spec's concurrency model for coarse writes that
// must be applied atomically together.
type Record struct {
	URL string // immutable key

	Window *window.Window

	mu                  sync.Mutex
	healthy             bool
	ema                 ewma.MovingAverage
	consecutiveFailures int
	lastHealthCheckAt   time.Time
	lastSlowAt          *time.Time
	inSlowCooldown      bool
}

// NewRecord returns a Record born healthy, with EMA seeded at
// initialLatencyMs and an empty sliding window of the given shape.
func NewRecord(url string, initialLatencyMs int, windowHorizon time.Duration, windowCapacity int) *Record {
	avg := ewma.NewMovingAverage(emaAge)
	avg.Set(float64(initialLatencyMs))
	return &Record{
		URL:     url,
		Window:  window.New(windowHorizon, windowCapacity),
		healthy: true,
		ema:     avg,
	}
}

// Healthy reports whether the record is currently selectable.
func (r *Record) Healthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.healthy
}

// EMALatencyMs returns the current smoothed latency, rounded to the nearest
// millisecond.
func (r *Record) EMALatencyMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.ema.Value()
	if v < 0 {
		v = 0
	}
	return int(v + 0.5)
}

// ConsecutiveFailures returns the current consecutive-failure counter.
func (r *Record) ConsecutiveFailures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consecutiveFailures
}

// LastHealthCheckAt returns the timestamp of the most recent probe applied
// to this record.
func (r *Record) LastHealthCheckAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHealthCheckAt
}

// InSlowCooldown reports the raw cooldown flag without evaluating expiry;
// use StillInSlowCooldown to account for elapsed time.
func (r *Record) InSlowCooldown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inSlowCooldown
}

// StillInSlowCooldown reports whether cooldown is active and has not yet
// expired, per spec: inSlowCooldown && lastSlowAt != nil && now < lastSlowAt+cooldown.
func (r *Record) StillInSlowCooldown(cooldown time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inSlowCooldown || r.lastSlowAt == nil {
		return false
	}
	return time.Now().Before(r.lastSlowAt.Add(cooldown))
}

// RecordLatency feeds a user-request sample into the EMA and the sliding
// window. Health-probe latencies must never be passed here.
func (r *Record) RecordLatency(ms int, at time.Time) {
	r.Window.Add(ms, at)
	r.mu.Lock()
	r.ema.Add(float64(ms))
	r.mu.Unlock()
}

// MarkSlow sets lastSlowAt, inSlowCooldown, and healthy together as a single
// critical section, per the spec's multi-field transition rule.
func (r *Record) MarkSlow(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := at
	r.lastSlowAt = &t
	r.inSlowCooldown = true
	r.healthy = false
}

// ClearSlowCooldown clears the cooldown fields. Idempotent.
func (r *Record) ClearSlowCooldown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inSlowCooldown = false
	r.lastSlowAt = nil
}

// MarkUnhealthy forces healthy=false and bumps the consecutive-failure
// counter, as used by the forwarding engine on transport failure.
func (r *Record) MarkUnhealthy(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures++
	r.healthy = false
	r.lastHealthCheckAt = at
}

// ApplyProbeResult applies a health-probe outcome per spec's cooldown-aware
// policy:
//  1. If still in an active slowness cooldown, force unhealthy and leave
//     cooldown fields untouched.
//  2. Else if cooldown has expired, clear it.
//  3. Then set healthy to the probe result.
//
// Consecutive failures reset to 0 on an unhealthy->healthy transition and
// increment on any reassertion of unhealthy (including repeated failures).
func (r *Record) ApplyProbeResult(probeHealthy bool, cooldown time.Duration, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inSlowCooldown && r.lastSlowAt != nil && at.Before(r.lastSlowAt.Add(cooldown)) {
		r.healthy = false
		r.lastHealthCheckAt = at
		return
	}
	if r.inSlowCooldown {
		r.inSlowCooldown = false
		r.lastSlowAt = nil
	}

	wasHealthy := r.healthy
	if probeHealthy {
		if !wasHealthy {
			r.consecutiveFailures = 0
		}
	} else {
		r.consecutiveFailures++
	}
	r.healthy = probeHealthy
	r.lastHealthCheckAt = at
}
