package main

import (
	"github.com/spf13/cobra"

	"whiteboard/internal/app"
)

var watchConfig bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the MCP endpoint and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := appOptions()
		opts.Watch = watchConfig
		return app.ServeHTTP(opts)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := appOptions()
		opts.Watch = watchConfig
		return app.ServeMCP(opts)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch", true, "reload the config file when it changes")
	mcpCmd.Flags().BoolVar(&watchConfig, "watch", true, "reload the config file when it changes")
}
