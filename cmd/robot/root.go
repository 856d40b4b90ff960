package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot/internal/cli"
	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/internal/validator"
	"github.com/sytabaresa/robot/pkg/debug"
	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/observability"
)

// logger is configured from the persistent flags before any command runs.
var logger = logging.NewNop()

var rootCmd = &cobra.Command{
	Use:   "robot",
	Short: "robot runs hierarchical state machines described in YAML",
	Long: `robot loads finite state machines (with guards, reducers, immediate transitions
and invoked tasks or child machines) from YAML or JSON documents, and lets you
validate, visualize, drive them interactively or serve them over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		levelFlag, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		debugMode, _ := cmd.Flags().GetBool("debug")

		level, err := logging.ParseLevel(levelFlag)
		if err != nil {
			return err
		}
		if debugMode {
			level = slog.LevelDebug
		}
		logger = logging.New(level, format)

		if debugMode {
			debug.Register(debug.Chain(
				observability.LogHooks(logger),
				domain.Hooks{Validate: validator.Hook},
			))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Unregister()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every transition and reject definitions with lint errors")
	rootCmd.PersistentFlags().StringP("machine", "m", "", "Machine of the document to use (default: the entry machine)")
}

// loadOptions builds the shared options from the file argument and flags.
func loadOptions(cmd *cobra.Command, args []string) cli.Options {
	machine, _ := cmd.Flags().GetString("machine")
	return cli.Options{Path: args[0], Machine: machine, Logger: logger}
}
