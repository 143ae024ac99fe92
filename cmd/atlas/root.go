package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - composable eligibility rule engine",
	Long: `Atlas is a multi-tenant eligibility rule engine built around composable
atoms: small, versioned rules that can depend on and compose other rules.

It provides:
  - Dependency-aware rule resolution with cycle and depth detection
  - Simple, complex, composite, template and machine-learning rule types
  - Fingerprint-based result caching with per-rule TTLs
  - Embedded test cases gating rule activation
  - Execution statistics and Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
