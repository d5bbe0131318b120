package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyatuestc/moonlight"
	"github.com/wyatuestc/moonlight/obconfig"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the statements for the configuration as JSON",
	Long: `Build the statements the run command would deploy and print them as
JSON, without connecting to any broker.

Examples:
  moonlight graph --config SampleApp.properties`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	// stdout carries the statements
	if logFormat == "console" {
		logFormat = "tint"
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	settings := obconfig.Load(configPath, logger).Settings(logger)
	app, err := moonlight.New(appName, settings, moonlight.WithLog(logger))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(app.Statements())
}
