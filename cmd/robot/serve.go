package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sytabaresa/robot/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve FILE",
	Short: "Serve a machine over HTTP",
	Long: `Starts the machine and exposes it over HTTP: GET /state, POST /events, GET /graph,
GET /stream (server-sent events), GET /metrics and GET /healthz.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ctxJSON, _ := cmd.Flags().GetString("context")
		strict, _ := cmd.Flags().GetBool("strict")
		redisURL, _ := cmd.Flags().GetString("redis")
		stream, _ := cmd.Flags().GetString("redis-stream")
		queueSize, _ := cmd.Flags().GetInt("queue-size")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Serve(sigCtx, cli.ServeOptions{
			Options:     loadOptions(cmd, args),
			Addr:        addr,
			Context:     ctxJSON,
			Strict:      strict,
			RedisURL:    redisURL,
			RedisStream: stream,
			QueueSize:   queueSize,
			Out:         cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("context", "", "Initial context as a JSON object")
	serveCmd.Flags().Bool("strict", false, "Answer 404 for events the current state does not handle")
	serveCmd.Flags().String("redis", "", "Redis URL to publish transition records to (e.g. redis://localhost:6379/0)")
	serveCmd.Flags().String("redis-stream", "", "Redis stream key (default robot:transitions)")
	serveCmd.Flags().Int("queue-size", 0, "Task outcomes buffered before tasks block (0 = default)")
}
