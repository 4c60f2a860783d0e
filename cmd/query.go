package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/compresr/cost-insights/internal/gateway"
	"github.com/compresr/cost-insights/internal/utils"
)

type queryFlags struct {
	start       string
	end         string
	granularity string
	services    []string
	ignoreCache bool
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run one cost query and print the JSON response",
		Example: `  cost-insights query --start 2025-04-01 --end 2025-04-07
  cost-insights query --start 2025-01-01 --end 2025-03-31 --granularity MONTHLY --service "Amazon EC2"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuery(cmd.Context(), opts, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.start, "start", "", "first day, YYYY-MM-DD (default yesterday)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day, YYYY-MM-DD (default yesterday)")
	cmd.Flags().StringVar(&f.granularity, "granularity", "DAILY", "DAILY or MONTHLY")
	cmd.Flags().StringSliceVar(&f.services, "service", nil, "service name filter; repeat or comma-separate")
	cmd.Flags().BoolVar(&f.ignoreCache, "ignore-cache", false, "fetch every day from Cost Explorer and overwrite the cache")
	return cmd
}

func runQuery(ctx context.Context, opts *rootOptions, f queryFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	q, err := gateway.ToQuery(&gateway.CostRequest{
		Start:       f.start,
		End:         f.end,
		Granularity: f.granularity,
		Service:     f.services,
		IgnoreCache: f.ignoreCache,
	}, time.Now())
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	resp, err := a.orchestrator().Query(ctx, q)
	if err != nil {
		return err
	}
	if resp.Partial {
		printWarn(fmt.Sprintf("partial result: %d days could not be fetched", len(resp.FailedDays)))
	}

	data, err := utils.MarshalIndentNoEscape(gateway.NewCostResponse(q, resp), "  ")
	if err != nil {
		return err
	}
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
