// Package cli wires the lunch meetups components behind a cobra command tree:
// "serve" runs the HTTP API and "fetch" runs the pipeline once and prints the
// result.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/lunch-meetups/internal/config"
	"github.com/Sternrassler/lunch-meetups/internal/server"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/pipeline"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version is reported by --version.
var Version = "0.1.0"

// options holds flag values for one command tree.
type options struct {
	envFile string
	start   string
	end     string
	format  string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "lunch-meetups",
		Short: "Aggregate lunchtime tech meetups from connpass",
		Long: `Collects meetups held between 12:00 and 13:00 from the connpass events API
over a date range of up to 32 days, falling back to placeholder events when
the API has nothing to offer.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional .env file loaded before reading the environment")

	cmd.AddCommand(newServeCmd(opts), newFetchCmd(opts))
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.service, a.validator, a.tracker)
			return srv.ListenAndServe(ctx, ":"+cfg.Port)
		},
	}
}

func newFetchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run the pipeline once and print the lunch events",
		Example: `  lunch-meetups fetch --start 2024-06-03 --end 2024-06-07
  lunch-meetups fetch --start 2024-06-03 --end 2024-06-07 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseFormat(opts.format)
			if err != nil {
				return err
			}

			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return runFetch(cmd.Context(), cmd.OutOrStdout(), a.validator, a.service, opts.start, opts.end, format)
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "First date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

// errFetchFailed marks failures whose message was already written to the output.
var errFetchFailed = errors.New("fetch failed")

// runFetch validates the range, runs the pipeline and writes the result.
// Caller-facing failures are written in the requested format and reported as
// errFetchFailed.
func runFetch(ctx context.Context, w io.Writer, validator *daterange.Validator, runner server.Runner, start, end string, format OutputFormat) error {
	rng, err := validator.Parse(start, end)
	if err != nil {
		var verr *daterange.ValidationError
		if errors.As(err, &verr) {
			WriteError(w, verr.Message, format)
			return errFetchFailed
		}
		return err
	}

	env, err := runner.Run(ctx, rng)
	switch {
	case err == nil:
		return WriteOutput(w, env, format)
	case errors.Is(err, pipeline.ErrUpstreamTimeout):
		WriteError(w, validator.Messages.UpstreamTimeout, format)
		return errFetchFailed
	default:
		return fmt.Errorf("%s: %w", validator.Messages.Unexpected, err)
	}
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFetchFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(ExitError)
	}
}
