package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check the machines of a document for consistency",
	Long:  `Builds every machine of the document and reports unreachable states, dead ends, missing error paths and unguarded immediate cycles.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Validate(loadOptions(cmd, args), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Document is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
