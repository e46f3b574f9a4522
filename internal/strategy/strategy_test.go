package strategy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golb/internal/backend"
	"golb/internal/strategy"
)

func rec(url string, initialLatencyMs int) *backend.Record {
	return backend.NewRecord(url, initialLatencyMs, time.Minute, 10)
}

func TestRoundRobin_NilAndEmptySnapshot(t *testing.T) {
	rr := strategy.NewRoundRobin()
	assert.Nil(t, rr.Select(nil))
	assert.Nil(t, rr.Select([]*backend.Record{}))
}

func TestRoundRobin_Fairness(t *testing.T) {
	backends := []*backend.Record{rec("http://b1", 100), rec("http://b2", 100), rec("http://b3", 100)}
	rr := strategy.NewRoundRobin()

	counts := map[string]int{}
	const k = 10
	for i := 0; i < k*len(backends); i++ {
		b := rr.Select(backends)
		require.NotNil(t, b)
		counts[b.URL]++
	}
	for _, b := range backends {
		assert.Equal(t, k, counts[b.URL])
	}
}

func TestRoundRobin_SkipsUnhealthy(t *testing.T) {
	b1 := rec("http://b1", 100)
	b2 := rec("http://b2", 100)
	b2.MarkUnhealthy(time.Now())

	rr := strategy.NewRoundRobin()
	for i := 0; i < 10; i++ {
		got := rr.Select([]*backend.Record{b1, b2})
		require.NotNil(t, got)
		assert.Equal(t, "http://b1", got.URL)
	}
}

func TestRoundRobin_AllUnhealthyReturnsNil(t *testing.T) {
	b1 := rec("http://b1", 100)
	b1.MarkUnhealthy(time.Now())

	rr := strategy.NewRoundRobin()
	assert.Nil(t, rr.Select([]*backend.Record{b1}))
}

func TestLeastResponseTime_PicksLowestEMA(t *testing.T) {
	b1 := rec("http://b1", 300)
	b2 := rec("http://b2", 100)
	b3 := rec("http://b3", 200)

	lrt := strategy.NewLeastResponseTime()
	got := lrt.Select([]*backend.Record{b1, b2, b3})
	require.NotNil(t, got)
	assert.Equal(t, "http://b2", got.URL)
}

func TestLeastResponseTime_SkipsUnhealthy(t *testing.T) {
	b1 := rec("http://b1", 50)
	b1.MarkUnhealthy(time.Now())
	b2 := rec("http://b2", 200)

	lrt := strategy.NewLeastResponseTime()
	got := lrt.Select([]*backend.Record{b1, b2})
	require.NotNil(t, got)
	assert.Equal(t, "http://b2", got.URL)
}

func TestLeastResponseTime_NilAndEmptySnapshot(t *testing.T) {
	lrt := strategy.NewLeastResponseTime()
	assert.Nil(t, lrt.Select(nil))
	assert.Nil(t, lrt.Select([]*backend.Record{}))
}

func TestNew_UnknownFallsBackToRoundRobin(t *testing.T) {
	s := strategy.New("not-a-real-strategy")
	assert.Equal(t, "round-robin", s.Name())
}

func TestNew_KnownNames(t *testing.T) {
	assert.Equal(t, "round-robin", strategy.New("round-robin").Name())
	assert.Equal(t, "least-response-time", strategy.New("least-response-time").Name())
	assert.Equal(t, "round-robin", strategy.New("").Name())
}
