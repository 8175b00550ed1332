// Command ledgerctl runs ledger operations against the database without the
// HTTP API: scheduler ticks, manual confirmations, withdrawals and tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the investment ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(tickCmd(&opts))
	rootCmd.AddCommand(confirmCmd(&opts))
	rootCmd.AddCommand(withdrawCmd(&opts))
	rootCmd.AddCommand(schedulePayoutCmd(&opts))
	rootCmd.AddCommand(plansCmd(&opts))
	rootCmd.AddCommand(tokenCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
