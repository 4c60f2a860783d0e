// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - QueryEvent:   Telemetry data for each cost query
//   - InitEvent:    Service startup configuration snapshot
//   - Config types: TelemetryConfig, LoggerConfig, OTLPConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// QueryEvent captures one cost query through the service.
type QueryEvent struct {
	RequestID         string    `json:"request_id"`
	Timestamp         time.Time `json:"timestamp"`
	Endpoint          string    `json:"endpoint"`
	ClientIP          string    `json:"client_ip,omitempty"`
	StartDate         string    `json:"start_date"`
	EndDate           string    `json:"end_date"`
	Granularity       string    `json:"granularity"`
	ServicesRequested []string  `json:"services_requested,omitempty"`
	IgnoreCache       bool      `json:"ignore_cache,omitempty"`
	Source            string    `json:"source,omitempty"`
	CacheHits         int       `json:"cache_hits"`
	CacheMisses       int       `json:"cache_misses"`
	FailedDays        []string  `json:"failed_days,omitempty"`
	Rows              int       `json:"rows"`
	StatusCode        int       `json:"status_code"`
	Success           bool      `json:"success"`
	Error             string    `json:"error,omitempty"`
	TotalLatencyMs    int64     `json:"total_latency_ms"`
}

// InitEvent captures service startup configuration.
type InitEvent struct {
	Timestamp            time.Time `json:"timestamp"`
	Event                string    `json:"event"`
	ServerPort           int       `json:"server_port"`
	ServerReadTimeoutMs  int64     `json:"server_read_timeout_ms"`
	ServerWriteTimeoutMs int64     `json:"server_write_timeout_ms"`
	CacheBackend         string    `json:"cache_backend"`
	CacheBucket          string    `json:"cache_bucket,omitempty"`
	CacheTTLMinutes      int       `json:"cache_ttl_minutes"`
	BillingRegion        string    `json:"billing_region,omitempty"`
	BillingMetric        string    `json:"billing_metric"`
	QueryParallelism     int       `json:"query_parallelism"`
	QueryTimeoutMs       int64     `json:"query_timeout_ms"`
	MaxRangeDays         int       `json:"max_range_days"`
	PrewarmEnabled       bool      `json:"prewarm_enabled"`
	SummarizerEnabled    bool      `json:"summarizer_enabled"`
	SummarizerModel      string    `json:"summarizer_model,omitempty"`
	OTLPEnabled          bool      `json:"otlp_enabled"`
	TelemetryPath        string    `json:"telemetry_path,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console, or empty to detect from the terminal
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// OTLPConfig configures the OpenTelemetry metrics exporter.
type OTLPConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"` // host:port of the collector
	Insecure bool          `yaml:"insecure"`
	Interval time.Duration `yaml:"interval"` // export period, 0 = SDK default
}
