package costcache

import (
	"context"
	"time"
)

// CostBackend fetches one day of cost rows grouped by service.
//
// Implementations always query the one-day window [day, day+1). A non-empty
// services filter may be pushed down to the backend; the orchestrator passes an
// empty filter when it intends to cache the result.
type CostBackend interface {
	FetchDay(ctx context.Context, day time.Time, granularity Granularity, services ServiceFilter) ([]CostEntry, error)
}

// Observer receives cache and backend events. monitoring.MetricsCollector and
// the OTLP exporter implement it.
type Observer interface {
	ObserveLookup(status string)
	ObserveStoreError(op string)
	ObserveBackendFetch(ok bool, latency time.Duration)
	ObserveQuery(source string, hits, misses int, latency time.Duration)
	ObservePrewarm(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string)                         {}
func (nopObserver) ObserveStoreError(string)                     {}
func (nopObserver) ObserveBackendFetch(bool, time.Duration)      {}
func (nopObserver) ObserveQuery(string, int, int, time.Duration) {}
func (nopObserver) ObservePrewarm(bool)                          {}
