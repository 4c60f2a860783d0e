package main

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/compresr/cost-insights/internal/billing"
	"github.com/compresr/cost-insights/internal/blobstore"
	"github.com/compresr/cost-insights/internal/config"
	"github.com/compresr/cost-insights/internal/costcache"
	"github.com/compresr/cost-insights/internal/gateway"
	"github.com/compresr/cost-insights/internal/monitoring"
	"github.com/compresr/cost-insights/internal/summarizer"
	"github.com/compresr/cost-insights/internal/utils"
)

// app holds the wired collaborators for one process.
type app struct {
	cfg      *config.Config
	blobs    blobstore.Store
	store    *costcache.PartitionStore
	backend  costcache.CostBackend
	metrics  *monitoring.MetricsCollector
	observer costcache.Observer

	closers []func(context.Context) error
}

// newBackendFunc builds the Cost Explorer client. Tests replace it.
var newBackendFunc = func(ctx context.Context, cfg config.BillingConfig) (costcache.CostBackend, error) {
	return billing.NewFromAWS(ctx, cfg.Region, billing.Config{
		Metric:            cfg.Metric,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
}

// buildApp opens the blob store, creates the billing client and the
// observers. The caller must Close the result.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: monitoring.NewMetricsCollector()}

	blobs, closeBlobs, err := openBlobStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.blobs = blobs
	if closeBlobs != nil {
		a.closers = append(a.closers, func(context.Context) error { return closeBlobs() })
	}

	observers := []costcache.Observer{a.metrics}
	if cfg.Monitoring.OTLP.Enabled {
		exp, err := monitoring.NewExporter(ctx, cfg.Monitoring.OTLP)
		if err != nil {
			// Metrics export is optional; the service runs without it.
			log.Warn().Err(err).Str("endpoint", cfg.Monitoring.OTLP.Endpoint).Msg("OTLP exporter disabled")
		} else {
			observers = append(observers, exp)
			a.closers = append(a.closers, exp.Close)
		}
	}
	a.observer = monitoring.NewFanout(observers...)

	a.store = costcache.NewPartitionStore(blobs, costcache.StoreConfig{
		Prefix: cfg.Cache.Prefix,
		TTL:    cfg.Cache.TTL(),
	}, costcache.WithStoreObserver(a.observer))

	backend, err := newBackendFunc(ctx, cfg.Billing)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.backend = backend

	return a, nil
}

// openBlobStore selects the backend named in cfg. The returned close func is
// nil when the backend holds no resources.
func openBlobStore(ctx context.Context, cfg config.CacheConfig) (blobstore.Store, func() error, error) {
	switch cfg.Backend {
	case "memory":
		return blobstore.NewMemory(), nil, nil
	case "sqlite":
		db, err := blobstore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("loading aws config: %w", err)
		}
		return blobstore.NewS3(s3.NewFromConfig(awsCfg), cfg.Bucket), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func (a *app) orchestrator() *costcache.Orchestrator {
	return costcache.NewOrchestrator(a.store, a.backend, costcache.OrchestratorConfig{
		Parallelism:  a.cfg.Query.Parallelism,
		Timeout:      a.cfg.Query.Timeout,
		MaxRangeDays: a.cfg.Query.MaxRangeDays,
	}, costcache.WithObserver(a.observer))
}

func (a *app) prewarmer() *costcache.Prewarmer {
	return costcache.NewPrewarmer(a.store, a.backend, a.cfg.Prewarm.Offset,
		costcache.WithPrewarmObserver(a.observer))
}

// summarizer returns nil when no API key is configured.
func (a *app) summarizer() gateway.CostSummarizer {
	sc := a.cfg.Summarizer
	if !sc.Enabled() {
		return nil
	}
	log.Info().
		Str("model", sc.Model).
		Str("api_key", utils.MaskKey(sc.APIKey)).
		Int("max_prompt_tokens", sc.MaxPromptTokens).
		Msg("cost summarizer enabled")
	client := summarizer.NewClient(sc.Endpoint, sc.Model, sc.APIKey, summarizer.WithTimeout(sc.Timeout))
	return summarizer.New(client, sc.MaxPromptTokens, nil)
}

// Close releases everything buildApp opened, in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
