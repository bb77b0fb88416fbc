package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/initializ/contextprune/logging"
)

var (
	verbose bool
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "contextprune",
	Short:         "Prune and inspect agent conversation transcripts against a token budget",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		writer := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !term.IsTerminal(int(os.Stderr.Fd()))}
		logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(inspectCmd)
}

// newLogger adapts the command's zerolog.Logger to the pruning package's
// minimal Logger interface.
func newLogger() *logging.ZerologLogger {
	return logging.NewZerologLogger(logger)
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
