// Command poebridge serves the OpenAI-compatible HTTP API on top of Poe bots.
//
// Usage:
//
//	# Start the server using environment variables and .env
//	poebridge run
//
//	# Start with a configuration file
//	poebridge run --config /etc/poebridge/config.yaml
//
//	# Check a configuration without starting
//	poebridge validate --config config.yaml
//
//	# Generate a local API key and store it in .env
//	poebridge keys generate --env-file .env
//
//	# List the model catalog
//	poebridge models --format json
package main

import "os"

func main() {
	os.Exit(Execute())
}
