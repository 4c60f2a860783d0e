// Package gateway serves the cost insights HTTP API.
//
// DESIGN: The gateway is a thin boundary around the core query path:
//   - decode and validate the body, convert it into a costcache.QueryRequest
//   - run the query, roll MONTHLY results up, format amounts
//   - record telemetry and counters for every request
//
// Operational endpoints (/stats, /stats/ws, /prewarm) are loopback only.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/cost-insights/internal/config"
	"github.com/compresr/cost-insights/internal/costcache"
	"github.com/compresr/cost-insights/internal/monitoring"
	"github.com/compresr/cost-insights/internal/summarizer"
)

// Querier runs cost queries. *costcache.Orchestrator implements it.
type Querier interface {
	Query(ctx context.Context, req costcache.QueryRequest) (*costcache.QueryResponse, error)
}

// Prewarmer refreshes yesterday's partition on demand.
type Prewarmer interface {
	PrewarmYesterday(ctx context.Context) costcache.PrewarmResult
}

// CostSummarizer writes a review of cost rows.
type CostSummarizer interface {
	SummarizeCosts(ctx context.Context, rows []costcache.CostEntry) (*summarizer.Summary, error)
}

// Pinger reports whether the cache store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the gateway serves from. Querier is required;
// a nil Summarizer disables /cost-insights/summary, a nil Prewarmer disables
// POST /prewarm.
type Deps struct {
	Querier    Querier
	Prewarmer  Prewarmer
	Summarizer CostSummarizer
	Store      Pinger
	Metrics    *monitoring.MetricsCollector
	Tracker    *monitoring.Tracker
}

// Gateway is the HTTP front of the cost cache.
type Gateway struct {
	config     *config.Config
	querier    Querier
	prewarmer  Prewarmer
	summarizer CostSummarizer
	store      Pinger
	metrics    *monitoring.MetricsCollector
	tracker    *monitoring.Tracker
	limiter    *IPRateLimiter
	now        func() time.Time
	server     *http.Server
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock overrides the clock used for the default "yesterday" range.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a gateway. The caller owns every dependency in deps.
func New(cfg *config.Config, deps Deps, opts ...Option) *Gateway {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Gateway{
		config:     cfg,
		querier:    deps.Querier,
		prewarmer:  deps.Prewarmer,
		summarizer: deps.Summarizer,
		store:      deps.Store,
		metrics:    deps.Metrics,
		tracker:    deps.Tracker,
		limiter:    NewIPRateLimiter(cfg.Server.RateLimit, config.MaxRateLimitBuckets),
		now:        time.Now,
	}
	if g.metrics == nil {
		g.metrics = monitoring.NewMetricsCollector()
	}
	if g.tracker == nil {
		g.tracker, _ = monitoring.NewTracker(monitoring.TelemetryConfig{})
	}
	for _, opt := range opts {
		opt(g)
	}

	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      g.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return g
}

// Handler returns the routed handler with middleware applied.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /cost-insights", g.limiter.Limit(http.HandlerFunc(g.handleCostInsights)))
	mux.Handle("POST /cost-insights/summary", g.limiter.Limit(http.HandlerFunc(g.handleSummary)))
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /stats", g.handleStats)
	mux.HandleFunc("GET /stats/ws", g.handleStatsWS)
	mux.HandleFunc("POST /prewarm", g.handlePrewarm)
	return requestIDMiddleware(mux)
}

// Start serves until Shutdown is called. http.ErrServerClosed is not an error.
func (g *Gateway) Start() error {
	g.tracker.RecordInit(buildInitEvent(g.config))
	log.Info().Str("addr", g.server.Addr).Msg("cost insights gateway listening")

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (g *Gateway) Serve(ln net.Listener) error {
	g.tracker.RecordInit(buildInitEvent(g.config))
	log.Info().Str("addr", ln.Addr().String()).Msg("cost insights gateway listening")

	if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the telemetry tracker.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)
	if cerr := g.tracker.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
