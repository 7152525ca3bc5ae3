// Command forecast-cache serves configured forecast queries through the
// deduplicating cache and rate limiter.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "forecast-cache",
		Short: "Request-deduplicating forecast cache",
		Long: `forecast-cache fronts slow forecast queries with a cache that computes
each distinct request at most once at a time, serves stale data while a
refresh is running, and rate limits clients per tier.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkConfigCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
