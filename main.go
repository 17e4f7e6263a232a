package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whiteboard/internal/app"
	"whiteboard/internal/config"
)

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "whiteboard <command>",
	Short:         "Collaborative whiteboard with an AI assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config.toml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd, mcpCmd, askCmd, templatesCmd, configCmd)
}

func appOptions() app.Options {
	return app.Options{ConfigPath: configPath}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
