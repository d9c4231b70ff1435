package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mercator-hq/poebridge/pkg/security/auth"
)

var keysFlags struct {
	envFile string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the local API key",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a local API key",
	Long: `Generate a random local API key for clients to present.

The key is printed to stdout. With --env-file it is also stored as
LOCAL_API_KEY in that file, keeping every other entry, and the file is
restricted to owner-only access.

Examples:
  # Print a new key
  poebridge keys generate

  # Store it in .env for the run command to pick up
  poebridge keys generate --env-file .env`,
	Args: cobra.NoArgs,
	RunE: generateKey,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.envFile, "env-file", "", "store the key as LOCAL_API_KEY in this .env file")
}

func generateKey(cmd *cobra.Command, args []string) error {
	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if keysFlags.envFile == "" {
		fmt.Fprintln(out, key)
		return nil
	}

	if err := writeEnvKey(keysFlags.envFile, key); err != nil {
		return fmt.Errorf("failed to update %s: %w", keysFlags.envFile, err)
	}
	fmt.Fprintln(out, key)
	fmt.Fprintf(out, "✓ LOCAL_API_KEY written to %s (fingerprint %s)\n", keysFlags.envFile, auth.Fingerprint(key))
	return nil
}

// writeEnvKey sets LOCAL_API_KEY in path, creating the file if needed.
func writeEnvKey(path, key string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	env["LOCAL_API_KEY"] = key

	if err := godotenv.Write(env, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}
