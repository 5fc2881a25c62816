package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/webdev/pkg/cli"
	"mercator-hq/webdev/pkg/config"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	mode          string
	upstream      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the webdev server",
	Long: `Start the webdev server with the specified configuration.

In production mode requests are served from the published asset root; the
first miss builds and publishes, and remaining misses are forwarded to the
upstream application server. In development mode the dev server is started
and every request is forwarded to it.

Examples:
  # Start with webdev.yaml from the current directory
  webdev run

  # Start with a custom config
  webdev run --config deploy/webdev.toml

  # Override listen address and upstream
  webdev run --listen 0.0.0.0:8080 --upstream http://127.0.0.1:4000

  # Validate config without starting the server
  webdev run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.mode, "mode", "", "override mode (production, development)")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream URL")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func applyRunFlags(cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.mode != "" {
		cfg.Mode = runFlags.mode
	}
	if runFlags.upstream != "" {
		cfg.Upstream.URL = runFlags.upstream
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyRunFlags)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	a, err := newApp(cfg, logger, appOptions{Console: os.Stderr, Serve: true})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
	}()

	logger.Info("webdev starting",
		"version", Version,
		"mode", cfg.Mode,
		"listen_address", cfg.Server.ListenAddress,
		"upstream", cfg.UpstreamURL(),
		"assets_root", cfg.Assets.Root,
		"admin_prefix", cfg.Server.AdminPrefix,
	)

	if err := a.serve(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Info("webdev stopped")
	return nil
}
