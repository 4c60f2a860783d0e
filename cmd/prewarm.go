package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compresr/cost-insights/internal/costcache"
)

func newPrewarmCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prewarm",
		Short: "Refresh yesterday's cached partition once and exit",
		Long: `prewarm fetches yesterday's unfiltered daily costs and overwrites the cache
entry, whether or not a valid one exists. Run it from cron shortly after
midnight UTC when the serve loop is not running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrewarm(cmd.Context(), opts)
		},
	}
}

func runPrewarm(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	res := a.prewarmer().PrewarmYesterday(ctx)
	if res.Err != nil {
		return fmt.Errorf("prewarm %s: %w", costcache.FormatDay(res.Day), res.Err)
	}
	printSuccess(fmt.Sprintf("cached %s (%d services)", costcache.FormatDay(res.Day), res.Rows))
	return nil
}
