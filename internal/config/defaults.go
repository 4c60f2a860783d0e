// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// HTTP SERVER
// =============================================================================

// DefaultPort is the HTTP listen port.
const DefaultPort = 8080

// DefaultServerReadTimeout bounds reading a request.
const DefaultServerReadTimeout = 15 * time.Second

// DefaultServerWriteTimeout must exceed the query timeout so partial
// responses still reach the caller.
const DefaultServerWriteTimeout = 2 * time.Minute

// DefaultShutdownTimeout is how long in-flight requests get on shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// MaxRequestBodySize is the maximum allowed request body (1MB).
const MaxRequestBodySize = 1 << 20

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultRateLimit is requests per second per IP.
const DefaultRateLimit = 20

// MaxRateLimitBuckets prevents memory exhaustion from too many IP buckets.
const MaxRateLimitBuckets = 10000

// =============================================================================
// CACHE
// =============================================================================

// DefaultCacheBackend is the blob store used when none is configured.
const DefaultCacheBackend = "sqlite"

// DefaultCacheTTLMinutes matches the original deployment's CACHE_TTL_MINUTES.
const DefaultCacheTTLMinutes = 30

// DefaultCachePrefix is the key prefix inside the bucket or table.
const DefaultCachePrefix = "cost_cache"

// DefaultSQLitePath is where the local cache lives.
const DefaultSQLitePath = "data/cost_cache.db"

// =============================================================================
// BILLING BACKEND
// =============================================================================

// DefaultBillingRegion is the Cost Explorer endpoint region.
const DefaultBillingRegion = "us-east-1"

// DefaultBillingMetric is the Cost Explorer metric reported per service.
const DefaultBillingMetric = "UnblendedCost"

// DefaultBillingRequestsPerSecond keeps fan-out under Cost Explorer throttling.
const DefaultBillingRequestsPerSecond = 5.0

// DefaultBillingBurst is the token bucket size for backend calls.
const DefaultBillingBurst = 5

// =============================================================================
// QUERY EXECUTION
// =============================================================================

// DefaultQueryParallelism bounds concurrent per-day lookups and fetches.
const DefaultQueryParallelism = 4

// DefaultQueryTimeout is the overall per-query deadline.
const DefaultQueryTimeout = 60 * time.Second

// DefaultMaxRangeDays rejects ranges longer than a year plus a leap day.
const DefaultMaxRangeDays = 366

// =============================================================================
// PREWARM
// =============================================================================

// DefaultPrewarmOffset is how long after midnight UTC the daily refresh runs.
const DefaultPrewarmOffset = 15 * time.Minute

// =============================================================================
// SUMMARIZER
// =============================================================================

// DefaultSummarizerEndpoint is the chat completions endpoint.
const DefaultSummarizerEndpoint = "https://api.perplexity.ai/chat/completions"

// DefaultSummarizerModel is the model asked for cost summaries.
const DefaultSummarizerModel = "sonar-pro"

// DefaultSummarizerTimeout bounds one summarizer call.
const DefaultSummarizerTimeout = 60 * time.Second

// DefaultMaxPromptTokens caps the cost table sent to the summarizer.
const DefaultMaxPromptTokens = 6000

// TokenEstimateRatio is the approximate number of characters per token.
// Used for rough token counting when the tokenizer is unavailable.
const TokenEstimateRatio = 4

// =============================================================================
// MONITORING
// =============================================================================

// DefaultStatsPushInterval is how often /stats/ws pushes a snapshot.
const DefaultStatsPushInterval = 5 * time.Second

// DefaultTelemetryPath is the JSONL query log location.
const DefaultTelemetryPath = "logs/queries.jsonl"
