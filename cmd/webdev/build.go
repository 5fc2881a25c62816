package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/webdev/pkg/cli"
	"mercator-hq/webdev/pkg/config"
)

var buildFlags struct {
	quiet bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and publish once",
	Long: `Run the install and build commands once and publish the output into the
asset root, then exit. The exit status is 3 when the build fails; the last
lines of its output are printed.

Examples:
  # Build in CI
  webdev build

  # Build with a specific config, without subprocess output
  webdev build --config webdev.toml --quiet`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVarP(&buildFlags.quiet, "quiet", "q", false, "do not echo build output")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(c *config.Config) {
		// A one-shot build never involves the dev server.
		c.Mode = config.ModeProduction
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	out := cmd.ErrOrStderr()
	opts := appOptions{
		Progress: cli.NewProgressReporter(out, cfg.Telemetry.Logging.NoColor),
	}
	if !buildFlags.quiet {
		opts.Console = out
	}

	a, err := newApp(cfg, logger, opts)
	if err != nil {
		return cli.NewCommandError("build", err)
	}
	defer a.close(context.Background())

	if err := a.router.Rebuild(ctx); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}
