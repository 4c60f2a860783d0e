// Package main is the cost-insights command.
//
// DESIGN: One binary, four subcommands:
//   - serve:    HTTP API plus the daily prewarm loop
//   - prewarm:  a single refresh of yesterday's partition (cron / scheduled job)
//   - query:    one query from flags, JSON to stdout
//   - services: service names Cost Explorer knows about, for building filters
package main

import (
	"os"
)

// Version is set at build time via ldflags.
var Version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
