package costcache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/compresr/cost-insights/internal/blobstore"
	"github.com/compresr/cost-insights/internal/costcache"
)

// 2025-04-10 12:00 UTC; "today" for every test in this package.
var testNow = time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: testNow} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeBackend serves canned rows per day and records every call.
type fakeBackend struct {
	mu      sync.Mutex
	rows    map[string][]costcache.CostEntry
	fail    map[string]error
	calls   map[string]int
	filters []costcache.ServiceFilter
	delay   time.Duration
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:  make(map[string][]costcache.CostEntry),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeBackend) set(day string, amounts map[string]string) {
	d, _ := costcache.ParseDay(day)
	rows := make([]costcache.CostEntry, 0, len(amounts))
	for svc, amt := range amounts {
		rows = append(rows, costcache.CostEntry{Date: d, Service: svc, AmountUSD: decimal.RequireFromString(amt)})
	}
	f.mu.Lock()
	f.rows[day] = rows
	f.mu.Unlock()
}

func (f *fakeBackend) failDay(day string, err error) {
	f.mu.Lock()
	f.fail[day] = err
	f.mu.Unlock()
}

func (f *fakeBackend) FetchDay(ctx context.Context, day time.Time, _ costcache.Granularity, services costcache.ServiceFilter) ([]costcache.CostEntry, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := costcache.FormatDay(day)
	f.calls[key]++
	f.filters = append(f.filters, services)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	out := make([]costcache.CostEntry, len(f.rows[key]))
	copy(out, f.rows[key])
	return out, nil
}

func (f *fakeBackend) callCount(day string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[day]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// brokenBlobs fails every operation.
type brokenBlobs struct{}

var errBlobsDown = errors.New("connection refused")

func (brokenBlobs) Get(context.Context, string) (*blobstore.Blob, error) { return nil, errBlobsDown }
func (brokenBlobs) Put(context.Context, string, []byte) error            { return errBlobsDown }
func (brokenBlobs) Ping(context.Context) error                           { return errBlobsDown }

type harness struct {
	orch    *costcache.Orchestrator
	store   *costcache.PartitionStore
	blobs   *blobstore.Memory
	backend *fakeBackend
	clock   *testClock
}

func newHarness(t *testing.T, cfg costcache.OrchestratorConfig) *harness {
	t.Helper()
	clock := newTestClock()
	blobs := blobstore.NewMemory()
	blobs.SetClock(clock.Now)
	store := costcache.NewPartitionStore(blobs, costcache.StoreConfig{TTL: 30 * time.Minute}, costcache.WithStoreClock(clock.Now))
	backend := newFakeBackend()
	orch := costcache.NewOrchestrator(store, backend, cfg, costcache.WithClock(clock.Now))
	return &harness{orch: orch, store: store, blobs: blobs, backend: backend, clock: clock}
}

func mustRange(t *testing.T, start, end string) costcache.DateRange {
	t.Helper()
	s, err := costcache.ParseDay(start)
	require.NoError(t, err)
	e, err := costcache.ParseDay(end)
	require.NoError(t, err)
	r, err := costcache.NewDateRange(s, e)
	require.NoError(t, err)
	return r
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := costcache.ParseDay(s)
	require.NoError(t, err)
	return d
}

func rowKeys(rows []costcache.CostEntry) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = costcache.FormatDay(r.Date) + "/" + r.Service
	}
	return out
}
