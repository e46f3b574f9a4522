// Package health implements active health checking for tracked backends.
// A Monitor runs a background ticker that, on every tick, optionally
// reconciles the backend set (for dynamic discovery sources) and probes
// every tracked backend concurrently via GET {url}/actuator/health.
//
// Passive health checks (marking a backend unhealthy after a forwarding
// failure) are handled by internal/forward — this package only covers
// active probing.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"golb/internal/admin"
	"golb/internal/backend"
	"golb/internal/registry"
)

// Config holds the parameters for the health monitor.
type Config struct {
	Interval        time.Duration
	Timeout         time.Duration
	CooldownSeconds time.Duration

	// BackoffAfterFailures gates a jittered re-probe backoff onto backends
	// that have failed at least this many consecutive probes, so a backend
	// known to be down for a while is not hammered every tick. Steady-state
	// probing below this threshold is unaffected. Zero disables backoff.
	BackoffAfterFailures int
}

// healthPayload is the decoded body of a backend's /actuator/health
// response. Only the status field is inspected; anything else is ignored.
type healthPayload struct {
	Status string `json:"status"`
}

// Monitor periodically probes every backend tracked by a Registry.
type Monitor struct {
	reg     *registry.Registry
	cfg     Config
	client  *http.Client
	metrics *admin.Metrics

	mu        sync.Mutex
	backoffs  map[string]*backoff.ExponentialBackOff
	nextProbe map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Monitor but does not start it; call Start to begin probing.
// metrics may be nil, in which case no counters are recorded.
func New(reg *registry.Registry, cfg Config, metrics *admin.Metrics) *Monitor {
	return &Monitor{
		reg:       reg,
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		metrics:   metrics,
		backoffs:  make(map[string]*backoff.ExponentialBackOff),
		nextProbe: make(map[string]time.Time),
	}
}

// Start begins the background health-check loop. It runs an immediate check
// before the first ticker tick so backends are classified quickly at
// startup.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		m.tick()

		for {
			select {
			case <-ticker.C:
				m.tick()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts down the background goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// tick performs one monitor cycle: reconcile if dynamic, then probe every
// tracked backend concurrently.
func (m *Monitor) tick() {
	if m.reg.SupportsDynamic() {
		m.reg.Reconcile()
	}
	m.probeAll()
}

// probeAll checks every backend concurrently and waits for all to finish.
// One slow probe cannot block the others.
func (m *Monitor) probeAll() {
	records := m.reg.AllSnapshot()

	var wg sync.WaitGroup
	for _, rec := range records {
		if !m.dueForProbe(rec.URL) {
			continue
		}
		wg.Add(1)
		go func(rec *backend.Record) {
			defer wg.Done()
			m.probe(rec)
		}(rec)
	}
	wg.Wait()
}

// dueForProbe reports whether rec.URL's backoff window (if any) has
// elapsed. Backends below the failure threshold are always due.
func (m *Monitor) dueForProbe(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.nextProbe[url]
	if !ok {
		return true
	}
	return !time.Now().Before(next)
}

// probe sends a single GET request and applies the cooldown-aware policy
// from Record.ApplyProbeResult. Per-probe failures are swallowed and
// logged; they never propagate to the caller.
func (m *Monitor) probe(rec *backend.Record) {
	healthy := m.fetchHealth(rec.URL)
	now := time.Now()

	wasHealthy := rec.Healthy()
	rec.ApplyProbeResult(healthy, m.cfg.CooldownSeconds, now)

	if wasHealthy && !healthy {
		slog.Warn("health: backend became unhealthy", "backend", rec.URL)
		m.incTransition("unhealthy")
	} else if !wasHealthy && healthy {
		slog.Info("health: backend recovered", "backend", rec.URL)
		m.incTransition("healthy")
	}

	m.updateBackoff(rec.URL, rec.ConsecutiveFailures())
}

// fetchHealth performs the actual probe and interprets the response per the
// backend health-probe contract: a 2xx response whose decoded JSON body has
// status=="UP" (case-insensitive) is healthy; anything else — bad status,
// bad body, or transport error — is unhealthy.
func (m *Monitor) fetchHealth(url string) bool {
	resp, err := m.client.Get(url + "/actuator/health")
	if err != nil {
		slog.Debug("health: probe failed", "backend", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var body healthPayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return strings.EqualFold(body.Status, "UP")
}

// updateBackoff arms or clears the re-probe backoff for url based on its
// current consecutive-failure count.
func (m *Monitor) updateBackoff(url string, consecutiveFailures int) {
	if m.cfg.BackoffAfterFailures <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if consecutiveFailures < m.cfg.BackoffAfterFailures {
		delete(m.backoffs, url)
		delete(m.nextProbe, url)
		return
	}

	b, ok := m.backoffs[url]
	if !ok {
		b = backoff.NewExponentialBackOff()
		b.InitialInterval = m.cfg.Interval
		b.MaxInterval = 10 * m.cfg.Interval
		b.MaxElapsedTime = 0 // never stop backing off on its own
		m.backoffs[url] = b
	}
	m.nextProbe[url] = time.Now().Add(b.NextBackOff())
}

func (m *Monitor) incTransition(state string) {
	if m.metrics == nil {
		return
	}
	m.metrics.TransitionTotal.WithLabelValues(state).Inc()
}
