package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/poebridge/pkg/cli"
	"mercator-hq/poebridge/pkg/server"
	"mercator-hq/poebridge/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the poebridge server",
	Long: `Start the poebridge server.

The server listens on the configured address and serves the OpenAI-compatible
API, the health endpoints and, when enabled, Prometheus metrics.

Examples:
  # Start with environment configuration
  LOCAL_API_KEY=sk-local-... POE_API_KEY=... poebridge run

  # Start with a config file
  poebridge run --config /etc/poebridge/config.yaml

  # Override listen address
  poebridge run --listen 0.0.0.0:8000

  # Validate config without starting server
  poebridge run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if _, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging,
		cfg.Backend.APIKey,
		cfg.Security.LocalAPIKey,
	)); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	srv, err := server.New(ctx, cfg, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintf(out, "poebridge %s\n", Version)
	fmt.Fprintf(out, "✓ %d models in catalog\n", srv.Models().Len())
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s\n", cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
