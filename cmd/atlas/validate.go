package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	validateAtomsPath  string
	validateTenant     string
	validateActivation bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [CODE...]",
	Short: "Validate atom definitions",
	Long: `Validate atom definitions from a file or directory.

Without arguments every atom is validated; with codes only those atoms are.
The --activation flag additionally checks activation readiness: test cases,
documentation, and executable, acyclic dependencies.`,
	Example: `  atlas validate --atoms atoms/
  atlas validate --atoms atoms/ --activation PREMIUM_CUSTOMER`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateAtomsPath, "atoms", "", "atom definitions file or directory (required)")
	validateCmd.Flags().StringVar(&validateTenant, "tenant", "default", "tenant ID")
	validateCmd.Flags().BoolVar(&validateActivation, "activation", false, "check activation readiness")
	validateCmd.MarkFlagRequired("atoms")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := buildRuntime(ctx, validateAtomsPath)
	if err != nil {
		return err
	}
	defer rt.close()

	atoms := rt.source.Store().All(validateTenant)
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
	if len(atoms) == 0 {
		return fmt.Errorf("no atoms found for tenant %q", validateTenant)
	}

	failed := 0
	for _, a := range atoms {
		resp, err := rt.service.Validate(ctx, a)
		if validateActivation && err == nil {
			resp, err = rt.service.ValidateForActivation(ctx, a)
		}
		if err != nil {
			return err
		}

		if resp.Valid {
			fmt.Printf("✓ %s v%d\n", a.Code, a.Version)
			continue
		}
		failed++
		fmt.Printf("✗ %s v%d\n", a.Code, a.Version)
		for _, msg := range resp.Errors {
			fmt.Printf("    %s\n", msg)
		}
	}

	fmt.Printf("\n%d atoms checked, %d failed\n", len(atoms), failed)
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
