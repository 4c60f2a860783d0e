// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes: HTTP query count and outcome
//   - lookups:            Cache hit/miss/expired per day partition
//   - backend:            Cost Explorer fetches, failures, latency
//   - store_errors:       Blob store get/put failures
//   - prewarm:            Daily refresh runs and failures
//
// MetricsCollector satisfies costcache.Observer so the core reports into it
// directly. The OTLP Exporter mirrors the same events for remote collection.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	// Request counters
	requests  atomic.Int64
	successes atomic.Int64

	// Query outcome counters
	queries     atomic.Int64
	sourceCache atomic.Int64
	sourceFresh atomic.Int64
	sourceMixed atomic.Int64
	queryMillis atomic.Int64 // Sum of query latency in milliseconds

	// Partition lookup counters
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	cacheExpired  atomic.Int64
	storeGetErrs  atomic.Int64
	storePutErrs  atomic.Int64
	backendFetch  atomic.Int64
	backendErrors atomic.Int64
	backendMillis atomic.Int64 // Sum of backend latency in milliseconds

	// Prewarm counters
	prewarmRuns     atomic.Int64
	prewarmFailures atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startedAt: time.Now(),
	}
}

// RecordRequest records an HTTP request.
func (mc *MetricsCollector) RecordRequest(success bool, _ time.Duration) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// ObserveLookup records one partition lookup outcome.
func (mc *MetricsCollector) ObserveLookup(status string) {
	switch status {
	case "hit":
		mc.cacheHits.Add(1)
	case "expired":
		mc.cacheExpired.Add(1)
	default:
		mc.cacheMisses.Add(1)
	}
}

// ObserveStoreError records a failed blob store operation.
func (mc *MetricsCollector) ObserveStoreError(op string) {
	if op == "put" {
		mc.storePutErrs.Add(1)
		return
	}
	mc.storeGetErrs.Add(1)
}

// ObserveBackendFetch records a Cost Explorer call.
func (mc *MetricsCollector) ObserveBackendFetch(ok bool, latency time.Duration) {
	mc.backendFetch.Add(1)
	mc.backendMillis.Add(latency.Milliseconds())
	if !ok {
		mc.backendErrors.Add(1)
	}
}

// ObserveQuery records a completed query.
func (mc *MetricsCollector) ObserveQuery(source string, _, _ int, latency time.Duration) {
	mc.queries.Add(1)
	mc.queryMillis.Add(latency.Milliseconds())
	switch source {
	case "cache":
		mc.sourceCache.Add(1)
	case "fresh":
		mc.sourceFresh.Add(1)
	case "mixed":
		mc.sourceMixed.Add(1)
	}
}

// ObservePrewarm records a prewarm pass.
func (mc *MetricsCollector) ObservePrewarm(ok bool) {
	mc.prewarmRuns.Add(1)
	if !ok {
		mc.prewarmFailures.Add(1)
	}
}

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// Stats returns current metrics as a flat map.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":       mc.requests.Load(),
		"successes":      mc.successes.Load(),
		"queries":        mc.queries.Load(),
		"cache_hits":     mc.cacheHits.Load(),
		"cache_misses":   mc.cacheMisses.Load(),
		"cache_expired":  mc.cacheExpired.Load(),
		"backend_errors": mc.backendErrors.Load(),
	}
}

// FullStats returns all metrics in a structured format for the /stats endpoint.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()
	hits := mc.cacheHits.Load()
	misses := mc.cacheMisses.Load()
	expired := mc.cacheExpired.Load()
	queries := mc.queries.Load()
	fetches := mc.backendFetch.Load()

	var cacheHitRate float64
	if total := hits + misses + expired; total > 0 {
		cacheHitRate = float64(hits) / float64(total) * 100
	}

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:      requests,
			Successful: successes,
			Failed:     requests - successes,
		},
		Queries: QueryStats{
			Total:        queries,
			FromCache:    mc.sourceCache.Load(),
			Fresh:        mc.sourceFresh.Load(),
			Mixed:        mc.sourceMixed.Load(),
			AvgLatencyMs: average(mc.queryMillis.Load(), queries),
		},
		Cache: CacheStats{
			Hits:         hits,
			Misses:       misses,
			Expired:      expired,
			HitRate:      cacheHitRate,
			GetErrors:    mc.storeGetErrs.Load(),
			PutErrors:    mc.storePutErrs.Load(),
			PrewarmRuns:  mc.prewarmRuns.Load(),
			PrewarmFails: mc.prewarmFailures.Load(),
		},
		Backend: BackendStats{
			Fetches:      fetches,
			Errors:       mc.backendErrors.Load(),
			AvgLatencyMs: average(mc.backendMillis.Load(), fetches),
		},
	}
}

// StatsResponse is the structured response for the /stats endpoint.
type StatsResponse struct {
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartedAt     string       `json:"started_at"`
	Requests      RequestStats `json:"requests"`
	Queries       QueryStats   `json:"queries"`
	Cache         CacheStats   `json:"cache"`
	Backend       BackendStats `json:"backend"`
}

// RequestStats holds request count metrics.
type RequestStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// QueryStats breaks completed queries down by response source.
type QueryStats struct {
	Total        int64   `json:"total"`
	FromCache    int64   `json:"from_cache"`
	Fresh        int64   `json:"fresh"`
	Mixed        int64   `json:"mixed"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// CacheStats holds partition cache metrics.
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Expired      int64   `json:"expired"`
	HitRate      float64 `json:"hit_rate"`
	GetErrors    int64   `json:"get_errors"`
	PutErrors    int64   `json:"put_errors"`
	PrewarmRuns  int64   `json:"prewarm_runs"`
	PrewarmFails int64   `json:"prewarm_failures"`
}

// BackendStats holds Cost Explorer call metrics.
type BackendStats struct {
	Fetches      int64   `json:"fetches"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

func average(sum, n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
