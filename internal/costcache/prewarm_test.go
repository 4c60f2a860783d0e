package costcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/cost-insights/internal/costcache"
)

func TestPrewarmYesterday_OverwritesValidEntry(t *testing.T) {
	h := newHarness(t, costcache.OrchestratorConfig{})
	h.backend.set("2025-04-09", map[string]string{"EC2": "1.00"})
	p := costcache.NewPrewarmer(h.store, h.backend, 0, costcache.WithPrewarmClock(h.clock.Now))

	first := p.PrewarmYesterday(context.Background())
	require.NoError(t, first.Err)
	assert.True(t, first.Cached)
	assert.Equal(t, "2025-04-09", costcache.FormatDay(first.Day))

	h.clock.Advance(time.Minute)
	h.backend.set("2025-04-09", map[string]string{"EC2": "1.50", "S3": "0.10"})
	second := p.PrewarmYesterday(context.Background())
	require.NoError(t, second.Err)
	assert.Equal(t, 2, second.Rows)
	assert.Equal(t, 2, h.backend.callCount("2025-04-09"))

	out := h.store.Get(context.Background(), costcache.PartitionKey{Granularity: costcache.Daily, Day: first.Day})
	require.Equal(t, costcache.LookupHit, out.Status)
	assert.Len(t, out.Rows, 2)
	assert.Equal(t, h.clock.Now(), out.WrittenAt)
}

func TestPrewarmYesterday_CachesEmptyDay(t *testing.T) {
	h := newHarness(t, costcache.OrchestratorConfig{})
	p := costcache.NewPrewarmer(h.store, h.backend, 0, costcache.WithPrewarmClock(h.clock.Now))

	res := p.PrewarmYesterday(context.Background())
	require.NoError(t, res.Err)
	assert.True(t, res.Cached)
	assert.Equal(t, []string{"cost_cache/DAILY/__ALL__/2025-04-09.json"}, h.blobs.Keys())
}

func TestPrewarmYesterday_FailureLeavesCacheUntouched(t *testing.T) {
	h := newHarness(t, costcache.OrchestratorConfig{})
	h.backend.failDay("2025-04-09", errors.New("expired credentials"))
	p := costcache.NewPrewarmer(h.store, h.backend, 0, costcache.WithPrewarmClock(h.clock.Now))

	res := p.PrewarmYesterday(context.Background())
	assert.Error(t, res.Err)
	assert.False(t, res.Cached)
	assert.Empty(t, h.blobs.Keys())
}

func TestNextPrewarm(t *testing.T) {
	offset := 15 * time.Minute
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before offset", time.Date(2025, 4, 10, 0, 5, 0, 0, time.UTC), time.Date(2025, 4, 10, 0, 15, 0, 0, time.UTC)},
		{"exactly at offset", time.Date(2025, 4, 10, 0, 15, 0, 0, time.UTC), time.Date(2025, 4, 11, 0, 15, 0, 0, time.UTC)},
		{"afternoon", time.Date(2025, 4, 10, 14, 0, 0, 0, time.UTC), time.Date(2025, 4, 11, 0, 15, 0, 0, time.UTC)},
		{"month end", time.Date(2025, 4, 30, 23, 59, 0, 0, time.UTC), time.Date(2025, 5, 1, 0, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, costcache.NextPrewarm(tt.now, offset))
		})
	}
}

func TestPrewarmer_StartRunsNowAndStopsOnCancel(t *testing.T) {
	h := newHarness(t, costcache.OrchestratorConfig{})
	p := costcache.NewPrewarmer(h.store, h.backend, 0, costcache.WithPrewarmClock(h.clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx, true) }()

	require.Eventually(t, func() bool { return h.backend.callCount("2025-04-09") == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("prewarmer did not stop")
	}
}
