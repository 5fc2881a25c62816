package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/webdev/pkg/cli"
	"mercator-hq/webdev/pkg/config"
	"mercator-hq/webdev/pkg/telemetry/logging"
)

// configCandidates are tried in order when --config is not given.
var configCandidates = []string{"webdev.yaml", "webdev.yml", "webdev.toml"}

var (
	// Global flags
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "webdev",
	Short: "webdev - build-on-demand asset server and reverse proxy",
	Long: `webdev sits in front of a web application. It serves the published
frontend build output, runs the build when a request misses and nothing has
been built yet, and forwards every other request to the application server
with standard forwarding headers.

In development mode it supervises the framework's dev server and forwards
all traffic to it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: webdev.yaml, webdev.yml or webdev.toml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// resolveConfigPath returns the explicit path, else the first candidate
// that exists, else "" for defaults plus environment.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configCandidates {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// loadConfig loads the configuration with environment and flag overrides,
// validates it and installs it globally. override may be nil.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	path := resolveConfigPath(cfgFile)

	cfg, err := config.LoadConfigWithOverrides(path, func(c *config.Config) {
		if override != nil {
			override(c)
		}
		if verbose {
			c.Telemetry.Logging.Level = "debug"
		}
		if noColor {
			c.Telemetry.Logging.NoColor = true
		}
	})
	if err != nil {
		return nil, cli.WrapConfigError(path, err)
	}

	config.SetConfig(cfg)
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the
// slog default.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Redact:    cfg.Telemetry.Logging.Redact,
		NoColor:   cfg.Telemetry.Logging.NoColor,
		Writer:    w,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}
