package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eligos-hq/atlas/pkg/atom"
)

var (
	testAtomsPath string
	testTenant    string
)

var testCmd = &cobra.Command{
	Use:   "test [CODE...]",
	Short: "Run atom test cases",
	Long: `Run the test cases embedded in atom definitions through the engine.

Without arguments every atom that declares test cases is run; with codes
only those atoms are.`,
	Example: `  atlas test --atoms atoms/
  atlas test --atoms atoms/ PREMIUM_CUSTOMER`,
	RunE: runTest,
}

func init() {
	testCmd.Flags().StringVar(&testAtomsPath, "atoms", "", "atom definitions file or directory (required)")
	testCmd.Flags().StringVar(&testTenant, "tenant", "default", "tenant ID")
	testCmd.MarkFlagRequired("atoms")

	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := buildRuntime(ctx, testAtomsPath)
	if err != nil {
		return err
	}
	defer rt.close()

	atoms := rt.source.Store().All(testTenant)
	if len(args) > 0 {
		wanted := make(map[string]bool, len(args))
		for _, code := range args {
			wanted[code] = true
		}
		filtered := atoms[:0]
		for _, a := range atoms {
			if wanted[a.Code] {
				filtered = append(filtered, a)
			}
		}
		atoms = filtered
	}

	var withCases []*atom.Atom
	for _, a := range atoms {
		if len(a.TestCases) > 0 {
			withCases = append(withCases, a)
		}
	}
	if len(withCases) == 0 {
		return fmt.Errorf("no atoms with test cases found for tenant %q", testTenant)
	}

	totalFailed := 0
	for _, a := range withCases {
		report, err := rt.service.Test(ctx, a)
		if err != nil {
			return err
		}

		marker := "✓"
		if report.Failed > 0 {
			marker = "✗"
		}
		fmt.Printf("%s %s v%d: %d/%d passed\n",
			marker, a.Code, a.Version, report.Passed, report.Total)

		for _, c := range report.Cases {
			if c.Passed {
				continue
			}
			if c.Error != "" {
				fmt.Printf("    %s: error: %s\n", c.Name, c.Error)
			} else {
				fmt.Printf("    %s: expected %v, got %v\n", c.Name, c.Expected, c.Actual)
			}
		}
		totalFailed += report.Failed
	}

	if totalFailed > 0 {
		fmt.Printf("\n%d test cases failed\n", totalFailed)
		os.Exit(1)
	}
	return nil
}
