// Package cli holds helpers shared by the poebridge commands: typed errors
// mapped to exit codes, text and JSON output formatting, and a signal-aware
// context for graceful shutdown.
//
//	ctx, stop := cli.SetupSignalHandler(context.Background())
//	defer stop()
package cli
