// Command hangul-client drives a running hangul-tts service from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagServer    = "server"
	flagLogDir    = "log-dir"
	flagTimeout   = "timeout"
	flagStart     = "start"
	flagBatchSize = "batch-size"
	flagPause     = "pause"
	flagOutput    = "output"
)

const (
	defaultServer    = "http://localhost:3000"
	defaultTimeout   = 15 * time.Minute
	defaultPause     = time.Second
	logFileName      = "hangul-client.log"
	singleFileSuffix = "_test.mp3"
)

// Log messages.
const (
	logBatchDone     = "Batch [%d, %d): processed %d, skipped %d, errors %d (%d/%d, %d%%)"
	logBatchError    = "  %s (%s): %s"
	logAllDone       = "All %d syllables generated"
	logIndexWritten  = "index.json written"
	logStopped       = "Stopped before index %d"
	logProgress      = "%d/%d completed, %d remaining (%d%%)"
	logSingleWritten = "Wrote %d bytes to %s"
)

var errInvalidStart = errors.New("start index must not be negative")

// app holds state shared by the subcommands.
type app struct {
	server  string
	logDir  string
	timeout time.Duration
	log     *logger.Logger
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "hangul-client",
		Short:         "Generate Hangul syllable audio through a hangul-tts service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log, err := logger.New(a.logDir, logFileName)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			a.log = log

			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}

	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.server, flagServer, defaultServer, "Base URL of the hangul-tts service")
	root.PersistentFlags().StringVar(&a.logDir, flagLogDir, os.TempDir(), "Directory for the client log file")
	root.PersistentFlags().DurationVar(&a.timeout, flagTimeout, defaultTimeout, "Per-request timeout")

	root.AddCommand(a.generateCmd(), a.progressCmd(), a.singleCmd())

	return root
}

func (a *app) client() *apiClient {
	return newAPIClient(a.server, a.timeout)
}

func (a *app) close() error {
	if a.log == nil {
		return nil
	}

	return a.log.Close()
}

func (a *app) generateCmd() *cobra.Command {
	var (
		start     int
		batchSize int
		pause     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate every syllable, one batch after another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if start < 0 {
				return errInvalidStart
			}

			return a.generate(cmd.Context(), start, batchSize, pause)
		},
	}

	cmd.Flags().IntVar(&start, flagStart, 0, "Enumeration index to start from")
	cmd.Flags().IntVar(&batchSize, flagBatchSize, 0, "Syllables per batch (0 uses the server default)")
	cmd.Flags().DurationVar(&pause, flagPause, defaultPause, "Pause between batches")

	return cmd
}

// generate requests batches sequentially until the enumeration is exhausted or ctx is canceled.
// Cancellation is checked between batches only; a batch already sent always completes.
func (a *app) generate(ctx context.Context, start, batchSize int, pause time.Duration) error {
	client := a.client()
	next := start
	batchCtx := context.WithoutCancel(ctx)

	for {
		result, err := client.generateBatch(batchCtx, next, batchSize)
		if err != nil {
			a.log.Error("Batch at %d failed: %v", next, err)

			return fmt.Errorf("batch at %d failed: %w", next, err)
		}

		a.printf(logBatchDone,
			result.CurrentBatch.StartIndex, result.CurrentBatch.EndIndex,
			result.Processed, result.Skipped, result.ErrorCount,
			result.Progress.Completed, result.Progress.Total, result.Progress.Percentage)
		a.log.Info(logBatchDone,
			result.CurrentBatch.StartIndex, result.CurrentBatch.EndIndex,
			result.Processed, result.Skipped, result.ErrorCount,
			result.Progress.Completed, result.Progress.Total, result.Progress.Percentage)

		for _, syllableErr := range result.Errors {
			a.printf(logBatchError, syllableErr.Syllable, syllableErr.Filename, syllableErr.Error)
		}

		if result.IsComplete || result.NextStartIndex == nil {
			a.printf(logAllDone, result.TotalSyllables)

			if result.IndexGenerated {
				a.printf(logIndexWritten)
			}

			return nil
		}

		next = *result.NextStartIndex

		select {
		case <-ctx.Done():
			a.printf(logStopped, next)

			return nil
		case <-time.After(pause):
		}
	}
}

func (a *app) progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show how many syllables have been generated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reply, err := a.client().progress(cmd.Context())
			if err != nil {
				return fmt.Errorf("progress check failed: %w", err)
			}

			a.printf(logProgress, reply.Completed, reply.Total, reply.Remaining, reply.Progress)

			return nil
		},
	}
}

func (a *app) singleCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "single <syllable>",
		Short: "Synthesize one syllable and save it without touching the batch output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syllable := args[0]

			audio, err := a.client().single(cmd.Context(), syllable)
			if err != nil {
				a.log.Error("Single synthesis for %s failed: %v", syllable, err)

				return fmt.Errorf("synthesis of %s failed: %w", syllable, err)
			}

			path := output
			if path == "" {
				path = syllable + singleFileSuffix
			}

			err = os.MkdirAll(filepath.Dir(path), 0o755)
			if err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			err = os.WriteFile(path, audio, 0o644)
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			a.printf(logSingleWritten, len(audio), path)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, flagOutput, "o", "", "Output file (defaults to <syllable>_test.mp3)")

	return cmd
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format+"\n", args...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
