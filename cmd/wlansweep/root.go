package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "wlansweep",
	Short:        "802.11ac goodput sweep",
	Long:         "wlansweep measures the UDP goodput of an 802.11ac access point as the number of stations grows.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
}
