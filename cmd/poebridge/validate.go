package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/poebridge/pkg/security/auth"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration the run command would use, including .env and
environment overrides, and report whether it is valid. Secrets are shown
only as fingerprints.

Examples:
  poebridge validate
  poebridge validate --config /etc/poebridge/config.yaml`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")
	fmt.Fprintf(out, "  listen address:  %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "  backend:         %s\n", cfg.Backend.BaseURL)
	fmt.Fprintf(out, "  local key:       %s\n", auth.Fingerprint(cfg.Security.LocalAPIKey))
	fmt.Fprintf(out, "  backend key:     %s\n", auth.Fingerprint(cfg.Backend.APIKey))
	fmt.Fprintf(out, "  files backend:   %s\n", cfg.Files.Backend)
	fmt.Fprintf(out, "  tls:             %t\n", cfg.Server.TLS.Enabled)
	return nil
}
