// Command contextprune exercises the pruning pipeline against a saved
// conversation transcript: load a JSON message list, run one Prune pass,
// report the resulting budget and structural changes.
package main

import (
	"os"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
