// moonlight deploys the firewall processing graph to a box segment and
// reacts to the events of its instances.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wyatuestc/moonlight/pkg/log"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	configPath string
	appName    string
	logLevel   string
	logFormat  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "moonlight",
	Short:         "Firewall control-plane application for box instances",
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "SampleApp.properties", "Properties or YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&appName, "name", "SampleApp", "Application name, used in block names")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json, tint)")
}

func newLogger() (*slog.Logger, error) {
	switch logFormat {
	case "console":
		return log.Slog(log.New(logLevel, false)), nil
	case "json":
		return log.Slog(log.New(logLevel, true)), nil
	case "tint":
		return log.Tint(logLevel), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
}
