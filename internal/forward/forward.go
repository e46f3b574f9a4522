// Package forward implements the core request-forwarding engine: it
// selects a backend via a pluggable strategy, proxies one inbound request
// to it, classifies the outcome, and retries on transport failure across
// the remaining candidates in the same snapshot.
package forward

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golb/internal/admin"
	"golb/internal/registry"
	"golb/internal/strategy"
)

// Config holds the per-request behavior knobs.
type Config struct {
	RequestTimeout time.Duration
}

// Engine is the public forwarding surface. It is safe for concurrent use.
type Engine struct {
	reg      *registry.Registry
	strategy strategy.Strategy
	client   *http.Client
	cfg      Config
	metrics  *admin.Metrics
}

// New returns an Engine that selects backends from reg via s. metrics may be
// nil, in which case no counters are recorded.
func New(reg *registry.Registry, s strategy.Strategy, cfg Config, metrics *admin.Metrics) *Engine {
	return &Engine{
		reg:      reg,
		strategy: s,
		client: &http.Client{
			// Return 3xx responses to the caller instead of following them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg:     cfg,
		metrics: metrics,
	}
}

// ServeHTTP implements the full algorithm of the forwarding engine: fetch a
// healthy snapshot, select a backend, proxy the request, classify the
// outcome, and retry on transport failure up to len(snapshot) attempts.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondPlain(w, http.StatusBadGateway, "Backend server error: failed to read request body")
		return
	}

	snapshot := e.reg.HealthySnapshot()

	for attempt := 0; ; attempt++ {
		if attempt >= len(snapshot) {
			respondPlain(w, http.StatusServiceUnavailable, "All backend servers are unavailable")
			return
		}

		chosen := e.strategy.Select(snapshot)
		if chosen == nil {
			respondPlain(w, http.StatusServiceUnavailable, "No healthy servers available")
			return
		}

		result, err := e.attempt(r, chosen.URL, body)
		if err != nil {
			// Every error surfaced by net/http's client is a genuine
			// transport/connectivity failure — Go never routes an actual
			// HTTP status response through the error return. Mark the
			// backend down and retry the next candidate.
			slog.Warn("forward: transport error, marking backend unhealthy",
				"backend", chosen.URL, "error", err)
			e.reg.MarkUnhealthy(chosen.URL, err)
			e.incForwarded("transport_error")
			e.incRetry()
			continue
		}

		e.reg.RecordLatency(chosen.URL, int(result.elapsed.Milliseconds()))

		if result.status >= 500 {
			// The backend is responding, just badly — this is a server-side
			// failure, not ours to retry and not reason to evict it.
			e.incForwarded("backend_error")
			respondPlain(w, http.StatusBadGateway, "Backend server error: "+result.statusText)
			return
		}

		e.incForwarded("ok")
		copyHeaders(w.Header(), result.header)
		w.WriteHeader(result.status)
		_, _ = w.Write(result.body)
		return
	}
}

func (e *Engine) incForwarded(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.ForwardedTotal.WithLabelValues(outcome).Inc()
}

func (e *Engine) incRetry() {
	if e.metrics == nil {
		return
	}
	e.metrics.RetriesTotal.Inc()
}

// attemptResult carries the buffered outcome of one proxied request.
type attemptResult struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
	elapsed    time.Duration
}

// attempt composes the outbound request — target URL is the backend's URL
// plus the original path, with the original raw query string appended
// verbatim (no re-encoding — matches source behavior; see SPEC_FULL.md) —
// sends it with the configured timeout, and buffers the full response
// before returning so the per-attempt context can be cancelled
// deterministically instead of leaking past ServeHTTP.
func (e *Engine) attempt(r *http.Request, backendURL string, body []byte) (attemptResult, error) {
	target := backendURL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	ctx := r.Context()
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		return attemptResult{}, err
	}
	outReq.Header = r.Header.Clone()

	start := time.Now()
	resp, err := e.client.Do(outReq)
	elapsed := time.Since(start)
	if err != nil {
		return attemptResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{}, err
	}

	return attemptResult{
		status:     resp.StatusCode,
		statusText: resp.Status,
		header:     resp.Header,
		body:       respBody,
		elapsed:    elapsed,
	}, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func respondPlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
