package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/compresr/cost-insights/internal/config"
	"github.com/compresr/cost-insights/internal/monitoring"
)

// rootOptions is shared by every subcommand. cfg is populated in
// PersistentPreRunE, before any RunE runs.
type rootOptions struct {
	configPath string
	debug      bool

	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cost-insights",
		Short: "Cached AWS cost queries",
		Long: `cost-insights answers AWS cost questions from a per-day cache in front of
Cost Explorer. Historical days are fetched once and reused until their TTL
expires; the current day is always fetched live.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			closer, err := monitoring.SetupLogger(cfg.Logging, opts.debug)
			if err != nil {
				return err
			}
			opts.cfg, opts.logCloser = cfg, closer
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML); defaults plus environment when empty")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newPrewarmCmd(opts),
		newQueryCmd(opts),
		newServicesCmd(opts),
	)
	return cmd
}
