// Package registry reconciles a discovery source's backend URL set into a
// map of tracked backend.Record state under a reader/writer lock.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"golb/internal/backend"
	"golb/internal/slowness"
)

// SeedConfig carries the parameters used to construct a fresh Record when a
// new backend URL first appears in a reconcile, plus the slowness policy
// thresholds applied to every RecordLatency call.
type SeedConfig struct {
	InitialLatencyMs int
	WindowHorizon    time.Duration
	WindowCapacity   int
	CooldownSeconds  time.Duration

	SlowThresholdMs        int
	SlownessWindowSize     int
	SlownessThresholdRatio float64
}

// Registry holds the current set of tracked backends and exposes
// read-locked snapshots to the health monitor, forwarding engine, and
// admin surface. order is the stable, discovery-order list of tracked
// URLs — range over the records map would randomize iteration order on
// every call, which the round-robin strategy depends on being stable.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*backend.Record
	order   []string

	source backend.Source
	seed   SeedConfig
}

// New returns an empty Registry backed by source. Call Reconcile to
// populate it.
func New(source backend.Source, seed SeedConfig) *Registry {
	return &Registry{
		records: make(map[string]*backend.Record),
		source:  source,
		seed:    seed,
	}
}

// Reconcile fetches the discovery list and, under the write lock, inserts
// records for URLs not yet tracked, appending each to the stable order as
// it first appears. If the source supports dynamic updates, records whose
// URL is no longer present are removed from both the map and the order.
// Additions and removals are logged.
func (r *Registry) Reconcile() {
	urls := r.source.List()
	seen := make(map[string]struct{}, len(urls))

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range urls {
		seen[u] = struct{}{}
		if _, ok := r.records[u]; ok {
			continue
		}
		r.records[u] = backend.NewRecord(u, r.seed.InitialLatencyMs, r.seed.WindowHorizon, r.seed.WindowCapacity)
		r.order = append(r.order, u)
		slog.Info("registry: backend added", "url", u)
	}

	if !r.source.SupportsDynamic() {
		return
	}

	kept := r.order[:0]
	for _, u := range r.order {
		if _, ok := seen[u]; ok {
			kept = append(kept, u)
			continue
		}
		delete(r.records, u)
		slog.Info("registry: backend removed", "url", u)
	}
	r.order = kept
}

// HealthySnapshot returns an immutable list, in stable discovery order, of
// records that are currently healthy and not in an active slowness
// cooldown.
func (r *Registry) HealthySnapshot() []*backend.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*backend.Record, 0, len(r.order))
	for _, u := range r.order {
		rec := r.records[u]
		if rec.Healthy() && !rec.StillInSlowCooldown(r.seed.CooldownSeconds) {
			out = append(out, rec)
		}
	}
	return out
}

// AllSnapshot returns an immutable list of every tracked record, in stable
// discovery order.
func (r *Registry) AllSnapshot() []*backend.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*backend.Record, 0, len(r.order))
	for _, u := range r.order {
		out = append(out, r.records[u])
	}
	return out
}

// SupportsDynamic reports whether the backing discovery source can add or
// remove backends after startup.
func (r *Registry) SupportsDynamic() bool {
	return r.source.SupportsDynamic()
}

// DiscoveryName returns the backing discovery source's name.
func (r *Registry) DiscoveryName() string {
	return r.source.Name()
}

// Get returns the record for url, if tracked.
func (r *Registry) Get(url string) (*backend.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[url]
	return rec, ok
}

// MarkUnhealthy marks the record for url unhealthy. No-op if url is not
// tracked (it may have been removed by a concurrent reconcile).
func (r *Registry) MarkUnhealthy(url string, reason error) {
	rec, ok := r.Get(url)
	if !ok {
		return
	}
	rec.MarkUnhealthy(time.Now())
	slog.Warn("registry: backend marked unhealthy", "url", url, "reason", reason)
}

// RecordLatency feeds a user-request latency sample for url through the
// slowness policy (EMA update, window add, cooldown check). No-op if url is
// not tracked.
func (r *Registry) RecordLatency(url string, ms int) {
	rec, ok := r.Get(url)
	if !ok {
		return
	}
	slowness.Observe(rec, ms, time.Now(), slowness.Config{
		SlowThresholdMs:        r.seed.SlowThresholdMs,
		SlownessWindowSize:     r.seed.SlownessWindowSize,
		SlownessThresholdRatio: r.seed.SlownessThresholdRatio,
	})
}
