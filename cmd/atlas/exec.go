package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	execAtomsPath string
	execTenant    string
	execInput     string
)

var execCmd = &cobra.Command{
	Use:   "exec CODE",
	Short: "Execute an atom against an input",
	Long: `Execute the latest executable version of an atom against a JSON input
and print the result.`,
	Example: `  atlas exec PREMIUM_CUSTOMER --atoms atoms/ --input '{"age": 25, "account_balance": 15000}'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runExec,
}

func init() {
	execCmd.Flags().StringVar(&execAtomsPath, "atoms", "", "atom definitions file or directory (required)")
	execCmd.Flags().StringVar(&execTenant, "tenant", "default", "tenant ID")
	execCmd.Flags().StringVarP(&execInput, "input", "i", "{}", "execution input as JSON")
	execCmd.MarkFlagRequired("atoms")

	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(execInput), &input); err != nil {
		return fmt.Errorf("invalid --input JSON: %w", err)
	}

	ctx := cmd.Context()
	rt, err := buildRuntime(ctx, execAtomsPath)
	if err != nil {
		return err
	}
	defer rt.close()

	resp, err := rt.service.ExecuteByCode(ctx, execTenant, args[0], input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
