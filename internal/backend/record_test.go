package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"golb/internal/backend"
)

func TestNewRecord_BornHealthy(t *testing.T) {
	r := backend.NewRecord("http://b1", 200, time.Minute, 10)
	assert.True(t, r.Healthy())
	assert.Equal(t, 200, r.EMALatencyMs())
	assert.Equal(t, 0, r.ConsecutiveFailures())
	assert.False(t, r.InSlowCooldown())
}

func TestRecord_EMAConvergesToConstant(t *testing.T) {
	r := backend.NewRecord("http://b1", 0, time.Minute, 100)
	now := time.Now()
	for i := 0; i < 50; i++ {
		r.RecordLatency(500, now)
	}
	assert.InDelta(t, 500, r.EMALatencyMs(), 2)
}

func TestRecord_MarkSlow_SetsThreeFieldsTogether(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkSlow(time.Now())

	assert.True(t, r.InSlowCooldown())
	assert.False(t, r.Healthy())
}

func TestRecord_StillInSlowCooldown_ExpiresOverTime(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkSlow(time.Now().Add(-2 * time.Second))

	assert.False(t, r.StillInSlowCooldown(time.Second), "cooldown set 2s ago with 1s duration must have expired")
	assert.True(t, r.StillInSlowCooldown(10*time.Second))
}

func TestRecord_ClearSlowCooldown_Idempotent(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkSlow(time.Now())
	r.ClearSlowCooldown()
	r.ClearSlowCooldown()

	assert.False(t, r.InSlowCooldown())
}

func TestRecord_MarkUnhealthy_IncrementsFailures(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkUnhealthy(time.Now())
	r.MarkUnhealthy(time.Now())

	assert.False(t, r.Healthy())
	assert.Equal(t, 2, r.ConsecutiveFailures())
}

func TestRecord_ApplyProbeResult_CooldownDominance(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkSlow(time.Now())

	r.ApplyProbeResult(true, time.Minute, time.Now())
	assert.False(t, r.Healthy(), "cooldown must force unhealthy regardless of probe result")
	assert.True(t, r.InSlowCooldown(), "cooldown fields must remain untouched while active")
}

func TestRecord_ApplyProbeResult_ClearsExpiredCooldownThenAppliesProbe(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.MarkSlow(time.Now().Add(-2 * time.Second))

	r.ApplyProbeResult(true, time.Second, time.Now())
	assert.True(t, r.Healthy())
	assert.False(t, r.InSlowCooldown())
	assert.Equal(t, 0, r.ConsecutiveFailures())
}

func TestRecord_ApplyProbeResult_ResetsFailuresOnRecovery(t *testing.T) {
	r := backend.NewRecord("http://b1", 100, time.Minute, 10)
	r.ApplyProbeResult(false, time.Minute, time.Now())
	r.ApplyProbeResult(false, time.Minute, time.Now())
	assert.Equal(t, 2, r.ConsecutiveFailures())

	r.ApplyProbeResult(true, time.Minute, time.Now())
	assert.Equal(t, 0, r.ConsecutiveFailures())
	assert.True(t, r.Healthy())
}
