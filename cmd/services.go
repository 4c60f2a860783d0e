package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/compresr/cost-insights/internal/billing"
	"github.com/compresr/cost-insights/internal/costcache"
)

func newServicesCmd(opts *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List service names with usage, for use as --service filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			ctx := cmd.Context()
			bc := opts.cfg.Billing
			client, err := billing.NewFromAWS(ctx, bc.Region, billing.Config{
				Metric:            bc.Metric,
				RequestsPerSecond: bc.RequestsPerSecond,
				Burst:             bc.Burst,
			})
			if err != nil {
				return err
			}

			end := costcache.Day(time.Now())
			names, err := client.ListServices(ctx, end.AddDate(0, 0, -days), end)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look-back window in days")
	return cmd
}
