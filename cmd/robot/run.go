package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Drive a machine interactively",
	Long:  `Starts the machine and reads events from stdin, one per line, until it reaches a final state.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxJSON, _ := cmd.Flags().GetString("context")
		strict, _ := cmd.Flags().GetBool("strict")
		quiet, _ := cmd.Flags().GetBool("quiet")
		maxTasks, _ := cmd.Flags().GetInt64("max-tasks")
		queueSize, _ := cmd.Flags().GetInt("queue-size")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.RunSession(sigCtx, cli.RunOptions{
			Options:            loadOptions(cmd, args),
			In:                 os.Stdin,
			Out:                cmd.OutOrStdout(),
			Context:            ctxJSON,
			Strict:             strict,
			MaxConcurrentTasks: maxTasks,
			QueueSize:          queueSize,
			Quiet:              quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("context", "", "Initial context as a JSON object")
	runCmd.Flags().Bool("strict", false, "Report events the current state does not handle as errors")
	runCmd.Flags().BoolP("quiet", "q", false, "Print transitions only")
	runCmd.Flags().Int64("max-tasks", 0, "Maximum invoked tasks running at once (0 = unbounded)")
	runCmd.Flags().Int("queue-size", 0, "Task outcomes buffered before tasks block (0 = default)")
}
