package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/poebridge/pkg/cli"
	"mercator-hq/poebridge/pkg/config"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "poebridge",
	Short: "OpenAI-compatible API backed by Poe bots",
	Long: `poebridge exposes the OpenAI REST API (chat, completions, embeddings,
moderations, images, files and assistants) and answers it with Poe bots.

Configuration comes from an optional YAML file, a .env file in the working
directory and environment variables, in increasing order of precedence.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults and environment only when empty)")
}

// loadConfig loads the configuration named by --config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}
