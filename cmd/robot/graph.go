package main

import (
	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot/internal/cli"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph FILE",
	Short: "Export the machine as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph TD) of the machine, with invoked machines drawn as nested subgraphs.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Graph(loadOptions(cmd, args), cmd.OutOrStdout())
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe FILE",
	Short: "Summarize the states and transitions of a machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		return cli.Describe(loadOptions(cmd, args), cmd.OutOrStdout(), !raw)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().Bool("raw", false, "Print markdown without terminal rendering")
}
