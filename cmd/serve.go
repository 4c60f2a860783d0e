package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/compresr/cost-insights/internal/gateway"
	"github.com/compresr/cost-insights/internal/monitoring"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily prewarm loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port > 0 {
				opts.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := opts.cfg
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("closing resources")
		}
	}()

	tracker, err := monitoring.NewTracker(cfg.Monitoring.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	prewarmer := a.prewarmer()
	gw := gateway.New(cfg, gateway.Deps{
		Querier:    a.orchestrator(),
		Prewarmer:  prewarmer,
		Summarizer: a.summarizer(),
		Store:      a.store,
		Metrics:    a.metrics,
		Tracker:    tracker,
	})

	if cfg.Prewarm.Enabled {
		go func() {
			err := prewarmer.Start(ctx, cfg.Prewarm.RunOnStart)
			log.Debug().Err(err).Msg("prewarm scheduler stopped")
		}()
		log.Info().
			Dur("offset", cfg.Prewarm.Offset).
			Bool("run_on_start", cfg.Prewarm.RunOnStart).
			Msg("prewarm scheduler started")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- gw.Start() }()
	printSuccess(fmt.Sprintf("cost-insights %s listening on :%d", Version, cfg.Server.Port))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	printInfo("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
