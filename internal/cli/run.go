package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ng-nicholas/tabbench/internal/bench"
	"github.com/ng-nicholas/tabbench/internal/plan"
	"github.com/ng-nicholas/tabbench/internal/report"
	"github.com/ng-nicholas/tabbench/internal/timing"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Out        string
	Drivers    []string
	Iterations int
	Warmup     int

	// IDs and Clock override the run ID generator and timing clock (for
	// testing). If nil, UUIDv7 IDs and the wall clock are used.
	IDs   bench.IDGenerator
	Clock timing.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Run a benchmark plan",
		Long: `Run every step of a benchmark plan on each selected back end.

Datasets are loaded and copied into the SQL back ends before any timing
starts. Each step runs once per back end for the equivalence check, then
is timed. The report goes to stdout, or to --out.

The exit code is 1 when any back end disagrees with the reference or any
run failed.

Example:
  tabbench run plans/contact-log.yaml
  tabbench run plans/contact-log.yaml --driver frame,sqlite --iterations 10
  tabbench run plans/contact-log.yaml --format markdown --out report.md`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringSliceVar(&opts.Drivers, "driver", nil, "back ends to compare, overriding the plan (frame,sqlite3,sqlite)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "timed runs per back end, overriding the plan")
	cmd.Flags().IntVar(&opts.Warmup, "warmup", 0, "discarded runs per back end, overriding the plan")

	return cmd
}

func runPlan(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	p, err := plan.Load(path)
	if err != nil {
		return formatter.Fail("failed to load plan", err)
	}
	if cmd.Flags().Changed("driver") {
		p.Implementations = opts.Drivers
	}
	if cmd.Flags().Changed("iterations") {
		p.Iterations = opts.Iterations
	}
	if cmd.Flags().Changed("warmup") {
		p.Warmup = opts.Warmup
	}
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return formatter.Fail("invalid format", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := bench.Run(ctx, p, bench.Options{Logger: logger, Clock: opts.Clock, IDs: opts.IDs})
	if err != nil {
		return formatter.Fail("benchmark failed", err)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, format); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}
	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, buf.Bytes(), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
		formatter.VerboseLog("Report written to %s", opts.Out)
	} else if _, err := buf.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}

	if !rep.Equivalent() {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: back ends produced different results", ErrCodeNotEquivalent))
	}
	if n := rep.Failures(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d run(s) failed", ErrCodeRunFailures, n))
	}
	return nil
}
