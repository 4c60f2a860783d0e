package gateway

import (
	"time"

	"github.com/compresr/cost-insights/internal/config"
	"github.com/compresr/cost-insights/internal/monitoring"
)

func buildInitEvent(cfg *config.Config) *monitoring.InitEvent {
	ev := &monitoring.InitEvent{
		Timestamp:            time.Now(),
		Event:                "gateway_init",
		ServerPort:           cfg.Server.Port,
		ServerReadTimeoutMs:  cfg.Server.ReadTimeout.Milliseconds(),
		ServerWriteTimeoutMs: cfg.Server.WriteTimeout.Milliseconds(),
		CacheBackend:         cfg.Cache.Backend,
		CacheTTLMinutes:      cfg.Cache.TTLMinutes,
		BillingRegion:        cfg.Billing.Region,
		BillingMetric:        cfg.Billing.Metric,
		QueryParallelism:     cfg.Query.Parallelism,
		QueryTimeoutMs:       cfg.Query.Timeout.Milliseconds(),
		MaxRangeDays:         cfg.Query.MaxRangeDays,
		PrewarmEnabled:       cfg.Prewarm.Enabled,
		SummarizerEnabled:    cfg.Summarizer.Enabled(),
		OTLPEnabled:          cfg.Monitoring.OTLP.Enabled,
		TelemetryPath:        cfg.Monitoring.Telemetry.LogPath,
	}

	if cfg.Cache.Backend == "s3" {
		ev.CacheBucket = cfg.Cache.Bucket
	}
	if ev.SummarizerEnabled {
		ev.SummarizerModel = cfg.Summarizer.Model
	}

	return ev
}
