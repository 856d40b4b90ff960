package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of robot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "robot version %s\n", strings.TrimSpace(robot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
