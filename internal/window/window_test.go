package window_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"golb/internal/window"
)

func TestWindow_EmptyAverageAndSlowRatio(t *testing.T) {
	w := window.New(time.Minute, 10)
	assert.Equal(t, 0.0, w.Average())
	assert.Equal(t, 0.0, w.SlowRatio(100))
	assert.Equal(t, 0, w.Count())
	assert.False(t, w.HasEnough(1))
}

func TestWindow_AverageAndSlowRatio(t *testing.T) {
	w := window.New(time.Minute, 10)
	now := time.Now()
	w.Add(100, now)
	w.Add(200, now)
	w.Add(900, now)

	assert.InDelta(t, 400.0, w.Average(), 0.001)
	assert.InDelta(t, 1.0/3.0, w.SlowRatio(300), 0.001)
}

func TestWindow_RejectsNegativeLatency(t *testing.T) {
	w := window.New(time.Minute, 10)
	w.Add(-5, time.Now())
	assert.Equal(t, 0, w.Count())
}

func TestWindow_EvictsByTime(t *testing.T) {
	w := window.New(100*time.Millisecond, 100)
	base := time.Now()
	w.Add(10, base.Add(-10*time.Minute))
	w.Add(20, base.Add(-5*time.Minute))
	w.Add(30, base)

	assert.Equal(t, 1, w.Count())
	assert.InDelta(t, 30.0, w.Average(), 0.001)
}

func TestWindow_EvictsByCapacity(t *testing.T) {
	w := window.New(time.Hour, 3)
	now := time.Now()
	for i := 0; i < 10; i++ {
		w.Add(i, now)
	}
	assert.Equal(t, 3, w.Count())
	// Last three entries added were 7, 8, 9.
	assert.InDelta(t, 8.0, w.Average(), 0.001)
}

func TestWindow_HasEnoughEvaluatesAfterEviction(t *testing.T) {
	w := window.New(50*time.Millisecond, 10)
	base := time.Now()
	w.Add(1, base.Add(-time.Hour))
	w.Add(2, base.Add(-time.Hour))

	assert.False(t, w.HasEnough(1), "stale entries must not count toward HasEnough")
}

func TestWindow_Clear(t *testing.T) {
	w := window.New(time.Minute, 10)
	w.Add(1, time.Now())
	w.Clear()
	assert.Equal(t, 0, w.Count())
	assert.Equal(t, 0.0, w.Average())
}
