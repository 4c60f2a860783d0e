package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "cost-insights"
	serviceVersion = "1.0.0"
)

// Exporter pushes cache and backend metrics to an OTLP collector.
type Exporter struct {
	provider     *sdkmetric.MeterProvider
	lookups      metric.Int64Counter
	storeErrors  metric.Int64Counter
	fetches      metric.Int64Counter
	fetchLatency metric.Float64Histogram
	queries      metric.Int64Counter
	queryDays    metric.Int64Counter
	queryLatency metric.Float64Histogram
	prewarmRuns  metric.Int64Counter
}

// NewExporter creates an OTLP/gRPC metrics exporter.
func NewExporter(ctx context.Context, cfg OTLPConfig) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	e, err := newExporter(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return e, nil
}

// newExporter registers instruments on provider. Tests pass a provider with a
// manual reader.
func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	var err error
	if e.lookups, err = meter.Int64Counter(
		"cost_cache_lookups_total",
		metric.WithDescription("Partition lookups by outcome"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, fmt.Errorf("creating lookups counter: %w", err)
	}
	if e.storeErrors, err = meter.Int64Counter(
		"cost_cache_store_errors_total",
		metric.WithDescription("Failed blob store operations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, fmt.Errorf("creating store errors counter: %w", err)
	}
	if e.fetches, err = meter.Int64Counter(
		"cost_backend_fetches_total",
		metric.WithDescription("Cost Explorer day fetches"),
		metric.WithUnit("{fetch}"),
	); err != nil {
		return nil, fmt.Errorf("creating fetches counter: %w", err)
	}
	if e.fetchLatency, err = meter.Float64Histogram(
		"cost_backend_fetch_duration_seconds",
		metric.WithDescription("Cost Explorer day fetch latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating fetch latency histogram: %w", err)
	}
	if e.queries, err = meter.Int64Counter(
		"cost_queries_total",
		metric.WithDescription("Completed cost queries by source"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, fmt.Errorf("creating queries counter: %w", err)
	}
	if e.queryDays, err = meter.Int64Counter(
		"cost_query_days_total",
		metric.WithDescription("Days served per query, by cache or backend"),
		metric.WithUnit("{day}"),
	); err != nil {
		return nil, fmt.Errorf("creating query days counter: %w", err)
	}
	if e.queryLatency, err = meter.Float64Histogram(
		"cost_query_duration_seconds",
		metric.WithDescription("End-to-end cost query latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating query latency histogram: %w", err)
	}
	if e.prewarmRuns, err = meter.Int64Counter(
		"cost_cache_prewarm_runs_total",
		metric.WithDescription("Daily prewarm passes by outcome"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, fmt.Errorf("creating prewarm counter: %w", err)
	}
	return e, nil
}

func (e *Exporter) ObserveLookup(status string) {
	e.lookups.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))
}

func (e *Exporter) ObserveStoreError(op string) {
	e.storeErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

func (e *Exporter) ObserveBackendFetch(ok bool, latency time.Duration) {
	opt := metric.WithAttributes(attribute.Bool("ok", ok))
	e.fetches.Add(context.Background(), 1, opt)
	e.fetchLatency.Record(context.Background(), latency.Seconds(), opt)
}

func (e *Exporter) ObserveQuery(source string, hits, misses int, latency time.Duration) {
	opt := metric.WithAttributes(attribute.String("source", source))
	e.queries.Add(context.Background(), 1, opt)
	e.queryLatency.Record(context.Background(), latency.Seconds(), opt)
	e.queryDays.Add(context.Background(), int64(hits), metric.WithAttributes(attribute.String("served_by", "cache")))
	e.queryDays.Add(context.Background(), int64(misses), metric.WithAttributes(attribute.String("served_by", "backend")))
}

func (e *Exporter) ObservePrewarm(ok bool) {
	e.prewarmRuns.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
