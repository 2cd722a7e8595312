package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceError     = 3
	ExitCredentialError = 4
)

var (
	flagConfig  string
	flagVerbose bool
)

func main() {
	os.Exit(run())
}

func run() int {
	exitCode := ExitSuccess

	root := &cobra.Command{
		Use:           "demfetch",
		Short:         "Fetch and unpack bulk elevation datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newFetchCommand(&exitCode),
		newUnpackCommand(&exitCode),
		newMirrorCommand(&exitCode),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	return exitCode
}

// newLogger builds the CLI logger on stderr.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

// signalContext returns a context cancelled by the first interrupt. A
// second interrupt force-quits the process without further cleanup.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nGracefully stopping... (press Ctrl+C again to force quit)")
		cancel()
		<-sigCh
		log.Error().Msg("force quit")
		os.Exit(ExitGeneralError)
	}()

	return ctx, cancel
}

func printRule(w *os.File) {
	fmt.Fprintln(w, "==================================================")
}
