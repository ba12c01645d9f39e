// Package timing measures operation implementations.
//
// Each implementation runs its warm-up runs, whose results and times are
// discarded, then its timed runs, one after another with no other timed
// work overlapping. A run that returns an error or panics is recorded as
// an ImplementationFailure and left out of the statistics.
package timing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/ops"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Config controls how many times each implementation runs.
type Config struct {
	Iterations int
	Warmup     int

	// CollectGarbage forces a collection before each implementation's
	// runs so one implementation's garbage is not billed to the next.
	CollectGarbage bool
}

// Validate rejects Iterations below one and negative Warmup.
func (c Config) Validate() error {
	if c.Iterations < 1 {
		return bencherr.NewInvalidConfig("iterations", "must be at least 1, got %d", c.Iterations)
	}
	if c.Warmup < 0 {
		return bencherr.NewInvalidConfig("warmup", "must not be negative, got %d", c.Warmup)
	}
	return nil
}

// Result holds the samples of one implementation.
type Result struct {
	Operation      string
	Implementation string

	// Samples are the elapsed times of successful timed runs in run order.
	Samples []time.Duration

	// Failures are the timed runs that failed.
	Failures []*bencherr.ImplementationFailure

	// WarmupFailures are the warm-up runs that failed. They do not affect
	// the statistics but are reported.
	WarmupFailures []*bencherr.ImplementationFailure

	// Failed is set when every timed run failed.
	Failed bool

	Stats Stats
}

// Harness runs implementations and measures them.
type Harness struct {
	clock  Clock
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(h *Harness) { h.clock = c }
}

// WithLogger sets the logger for run events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		clock:  WallClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run times every implementation of op over inputs, in registration order.
// It returns one Result per implementation. Only an invalid config or a
// cancelled context is an error; implementation failures are recorded in
// the results.
func (h *Harness) Run(ctx context.Context, op *ops.Operation, inputs []*table.Table, cfg Config) ([]*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(op.Implementations))
	for _, impl := range op.Implementations {
		res, err := h.runImplementation(ctx, op.Name, impl, inputs, cfg)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (h *Harness) runImplementation(ctx context.Context, opName string, impl ops.Implementation, inputs []*table.Table, cfg Config) (*Result, error) {
	res := &Result{Operation: opName, Implementation: impl.Name}
	if cfg.CollectGarbage {
		runtime.GC()
	}

	for i := 1; i <= cfg.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f := Invoke(ctx, opName, impl, inputs, -i); f != nil {
			h.logger.Warn("warm-up run failed", "op", opName, "impl", impl.Name, "run", i, "error", f.Err)
			res.WarmupFailures = append(res.WarmupFailures, f)
		}
	}

	for i := 1; i <= cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := h.clock.Now()
		f := Invoke(ctx, opName, impl, inputs, i)
		elapsed := h.clock.Now().Sub(start)
		if f != nil {
			h.logger.Warn("timed run failed", "op", opName, "impl", impl.Name, "run", i, "error", f.Err)
			res.Failures = append(res.Failures, f)
			continue
		}
		res.Samples = append(res.Samples, elapsed)
	}

	res.Failed = len(res.Samples) == 0
	res.Stats = Summarize(res.Samples)
	h.logger.Debug("implementation timed",
		"op", opName,
		"impl", impl.Name,
		"samples", res.Stats.N,
		"failures", len(res.Failures),
		"mean", res.Stats.Mean,
	)
	return res, nil
}

// Invoke runs impl once, converting an error or panic into an
// ImplementationFailure for the given run number.
func Invoke(ctx context.Context, opName string, impl ops.Implementation, inputs []*table.Table, run int) (failure *bencherr.ImplementationFailure) {
	_, failure = InvokeResult(ctx, opName, impl, inputs, run)
	return failure
}

// InvokeResult is like Invoke but also returns the output table.
func InvokeResult(ctx context.Context, opName string, impl ops.Implementation, inputs []*table.Table, run int) (out *table.Table, failure *bencherr.ImplementationFailure) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			failure = &bencherr.ImplementationFailure{
				Operation:      opName,
				Implementation: impl.Name,
				Run:            run,
				Panic:          true,
				Err:            fmt.Errorf("%v", r),
			}
		}
	}()

	out, err := impl.Fn(ctx, inputs)
	if err == nil && out == nil {
		err = fmt.Errorf("returned no table")
	}
	if err != nil {
		return nil, &bencherr.ImplementationFailure{Operation: opName, Implementation: impl.Name, Run: run, Err: err}
	}
	return out, nil
}
