package admin_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golb/internal/admin"
	"golb/internal/backend"
	"golb/internal/registry"
)

func seed() registry.SeedConfig {
	return registry.SeedConfig{
		InitialLatencyMs:       100,
		WindowHorizon:          time.Minute,
		WindowCapacity:         10,
		CooldownSeconds:        time.Second,
		SlowThresholdMs:        1000,
		SlownessWindowSize:     5,
		SlownessThresholdRatio: 0.6,
	}
}

func TestView_Health_ReflectsAllTrackedRecords(t *testing.T) {
	reg := registry.New(backend.NewStaticSource([]string{"http://a", "http://b"}), seed())
	reg.Reconcile()
	reg.MarkUnhealthy("http://b", assert.AnError)

	view := admin.NewView(reg, "round-robin")
	health := view.Health()

	require.Len(t, health, 2)
	byURL := map[string]admin.BackendView{}
	for _, h := range health {
		byURL[h.URL] = h
	}
	assert.True(t, byURL["http://a"].Healthy)
	assert.False(t, byURL["http://b"].Healthy)
	assert.Equal(t, 1, byURL["http://b"].ConsecutiveFailures)
}

func TestView_Strategy_ReportsConfiguredName(t *testing.T) {
	reg := registry.New(backend.NewStaticSource(nil), seed())
	view := admin.NewView(reg, "least-response-time")
	assert.Equal(t, "least-response-time", view.Strategy())
}

func TestView_Stats_AveragesHealthyOnly(t *testing.T) {
	reg := registry.New(backend.NewStaticSource([]string{"http://a", "http://b"}), seed())
	reg.Reconcile()
	reg.MarkUnhealthy("http://b", assert.AnError)

	stats := admin.NewView(reg, "round-robin").Stats()
	assert.Equal(t, 2, stats.TotalServers)
	assert.Equal(t, 1, stats.HealthyServers)
	assert.Equal(t, 1, stats.UnhealthyServers)
	assert.Equal(t, 100, stats.AverageResponseTime)
}

func TestView_Stats_ZeroWhenNoneHealthy(t *testing.T) {
	reg := registry.New(backend.NewStaticSource([]string{"http://a"}), seed())
	reg.Reconcile()
	reg.MarkUnhealthy("http://a", assert.AnError)

	stats := admin.NewView(reg, "round-robin").Stats()
	assert.Equal(t, 0, stats.AverageResponseTime)
}

func TestView_Discovery_ReportsSourceMetadata(t *testing.T) {
	reg := registry.New(backend.NewStaticSource([]string{"http://a"}), seed())
	reg.Reconcile()

	disc := admin.NewView(reg, "round-robin").Discovery()
	assert.Equal(t, "static", disc.StrategyName)
	assert.False(t, disc.SupportsDynamicUpdates)
	assert.Equal(t, 1, disc.ServerCount)
	assert.Contains(t, disc.DiscoveredServers, "http://a")
}

func TestServer_RoutesAllFourReadOnlyEndpointsPlusMetrics(t *testing.T) {
	reg := registry.New(backend.NewStaticSource([]string{"http://a"}), seed())
	reg.Reconcile()
	view := admin.NewView(reg, "round-robin")
	metrics := admin.NewMetrics()

	srv := admin.New(view, metrics, ":0")
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	for _, path := range []string{"/admin/health", "/admin/strategy", "/admin/stats", "/admin/discovery", "/admin/metrics"} {
		resp, err := http.Get(front.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "path %s", path)
		resp.Body.Close()
	}
}

func TestServer_Strategy_ReturnsJSONShape(t *testing.T) {
	reg := registry.New(backend.NewStaticSource(nil), seed())
	view := admin.NewView(reg, "least-response-time")
	srv := admin.New(view, nil, ":0")

	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	resp, err := http.Get(front.URL + "/admin/strategy")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "least-response-time", body["strategy"])
}
