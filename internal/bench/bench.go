package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/ng-nicholas/tabbench/internal/dataset"
	"github.com/ng-nicholas/tabbench/internal/equiv"
	"github.com/ng-nicholas/tabbench/internal/frame"
	"github.com/ng-nicholas/tabbench/internal/ops"
	"github.com/ng-nicholas/tabbench/internal/plan"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/report"
	"github.com/ng-nicholas/tabbench/internal/sqlengine"
	"github.com/ng-nicholas/tabbench/internal/table"
	"github.com/ng-nicholas/tabbench/internal/timing"
)

// IDGenerator produces run identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator issues time-ordered UUIDv7 run identifiers.
type UUIDGenerator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Options configures a run. Zero values select the defaults.
type Options struct {
	Logger *slog.Logger
	Clock  timing.Clock
	IDs    IDGenerator

	// Backends replaces the back ends named by the plan. Tests use it to
	// inject implementations.
	Backends []ops.Backend
}

// preloader is a back end that can copy tables in ahead of timing.
type preloader interface {
	Preload(ctx context.Context, tables ...*table.Table) error
}

// preparer is a back end that can check a query and log its plan once per
// step, outside timing.
type preparer interface {
	Prepare(ctx context.Context, q queryir.Query, inputs []*table.Table) error
}

type runner struct {
	plan     *plan.Plan
	logger   *slog.Logger
	harness  *timing.Harness
	registry *ops.Registry
	backends []ops.Backend
	tables   map[string]*table.Table
}

// Run executes p and returns its report.
func Run(ctx context.Context, p *plan.Plan, opts Options) (*report.Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	hopts := []timing.Option{timing.WithLogger(opts.Logger)}
	if opts.Clock != nil {
		hopts = append(hopts, timing.WithClock(opts.Clock))
	}

	r := &runner{
		plan:     p,
		logger:   opts.Logger,
		harness:  timing.New(hopts...),
		registry: ops.NewRegistry(),
		tables:   make(map[string]*table.Table),
	}
	rep := &report.Report{
		RunID:      opts.IDs.Generate(),
		Plan:       p.Name,
		Iterations: p.Iterations,
		Warmup:     p.Warmup,
	}
	r.logger.Info("benchmark started", "plan", p.Name, "run_id", rep.RunID, "backends", p.Implementations)

	infos, err := r.loadDatasets()
	if err != nil {
		return nil, err
	}
	rep.Datasets = infos

	backends := opts.Backends
	if backends == nil {
		opened, closeAll, err := openBackends(ctx, p.Implementations, opts.Logger)
		if err != nil {
			return nil, err
		}
		defer closeAll()
		backends = opened
	}
	r.backends = backends

	if err := r.preload(ctx, r.datasetTables()...); err != nil {
		return nil, err
	}
	if err := r.register(); err != nil {
		return nil, err
	}

	for _, step := range p.Steps {
		op, err := r.runStep(ctx, step)
		if err != nil {
			return nil, err
		}
		rep.Operations = append(rep.Operations, op)
	}

	r.logger.Info("benchmark finished", "plan", p.Name, "equivalent", rep.Equivalent(), "failures", rep.Failures())
	return rep, nil
}

func (r *runner) loadDatasets() ([]report.DatasetInfo, error) {
	infos := make([]report.DatasetInfo, 0, len(r.plan.Datasets))
	for _, d := range r.plan.Datasets {
		f, err := d.Format()
		if err != nil {
			return nil, err
		}
		path := d.ResolvePath(r.plan.Dir)
		t, err := dataset.Load(path, f)
		if err != nil {
			return nil, err
		}
		info := report.DatasetInfo{Name: d.Name, Path: d.Path, Rows: t.NumRows(), Columns: t.NumCols()}
		if st, err := os.Stat(path); err == nil {
			info.Bytes = st.Size()
		}
		r.tables[d.Name] = t
		infos = append(infos, info)
		r.logger.Debug("dataset loaded", "name", d.Name, "path", path, "rows", info.Rows, "columns", info.Columns)
	}
	return infos, nil
}

func (r *runner) datasetTables() []*table.Table {
	out := make([]*table.Table, 0, len(r.plan.Datasets))
	for _, d := range r.plan.Datasets {
		out = append(out, r.tables[d.Name])
	}
	return out
}

// openBackends opens the named back ends. The returned function closes
// every SQL engine opened.
func openBackends(ctx context.Context, names []string, logger *slog.Logger) ([]ops.Backend, func(), error) {
	var engines []*sqlengine.Engine
	closeAll := func() {
		for _, e := range engines {
			e.Close()
		}
	}

	backends := make([]ops.Backend, 0, len(names))
	for _, name := range names {
		if name == frame.Name {
			backends = append(backends, frame.New(logger))
			continue
		}
		e, err := sqlengine.Open(ctx, name, sqlengine.WithLogger(logger))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", name, err)
		}
		engines = append(engines, e)
		backends = append(backends, e)
	}
	return backends, closeAll, nil
}

func (r *runner) preload(ctx context.Context, tables ...*table.Table) error {
	for _, b := range r.backends {
		if p, ok := b.(preloader); ok {
			if err := p.Preload(ctx, tables...); err != nil {
				return fmt.Errorf("preload %s: %w", b.Name(), err)
			}
		}
	}
	return nil
}

func (r *runner) register() error {
	for _, step := range r.plan.Steps {
		q, err := step.Query()
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name, err)
		}
		if err := r.registry.Build(step.Name, q, r.backends...); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) runStep(ctx context.Context, step plan.Step) (report.OperationReport, error) {
	op, err := r.registry.Lookup(step.Name)
	if err != nil {
		return report.OperationReport{}, err
	}
	inputs := make([]*table.Table, len(step.Inputs))
	for i, name := range step.Inputs {
		t, ok := r.tables[name]
		if !ok {
			return report.OperationReport{}, fmt.Errorf("step %s: input %q produced no table", step.Name, name)
		}
		inputs[i] = t
	}
	// outputs of earlier steps enter the SQL engines here, outside timing
	if err := r.preload(ctx, inputs...); err != nil {
		return report.OperationReport{}, err
	}

	r.logger.Info("step started", "step", step.Name, "kind", step.Kind, "inputs", step.Inputs)
	r.prepare(ctx, step, inputs)

	checks, output, err := r.checkEquivalence(ctx, step, op, inputs)
	if err != nil {
		return report.OperationReport{}, err
	}
	if output != nil {
		r.tables[step.Name] = output
	}

	results, err := r.harness.Run(ctx, op, inputs, timing.Config{
		Iterations:     r.plan.Iterations,
		Warmup:         r.plan.Warmup,
		CollectGarbage: r.plan.CollectGarbage,
	})
	if err != nil {
		return report.OperationReport{}, err
	}

	rep := report.Build(step.Name, step.Kind, results, checks)
	if output != nil {
		rep.Output = &report.OutputInfo{Rows: output.NumRows(), Columns: output.NumCols(), Fingerprint: equiv.Fingerprint(output)}
	}
	r.logger.Info("step finished", "step", step.Name, "equivalent", rep.Equivalent, "fastest", rep.Fastest)
	return rep, nil
}

// prepare lets each back end log its plan for step. A failure here shows
// up again when the implementation runs, so it is only logged.
func (r *runner) prepare(ctx context.Context, step plan.Step, inputs []*table.Table) {
	q, err := step.Query()
	if err != nil {
		return
	}
	for _, b := range r.backends {
		if p, ok := b.(preparer); ok {
			if err := p.Prepare(ctx, q, inputs); err != nil {
				r.logger.Warn("prepare failed", "step", step.Name, "backend", b.Name(), "error", err)
			}
		}
	}
}

// checkEquivalence runs every implementation once and compares each with
// the first. It returns the checks and the output later steps consume:
// the reference output, or the first successful one.
func (r *runner) checkEquivalence(ctx context.Context, step plan.Step, op *ops.Operation, inputs []*table.Table) ([]report.Check, *table.Table, error) {
	outputs := make([]*table.Table, len(op.Implementations))
	failures := make([]error, len(op.Implementations))
	for i, impl := range op.Implementations {
		out, f := timing.InvokeResult(ctx, op.Name, impl, inputs, 0)
		if f != nil {
			r.logger.Warn("equivalence run failed", "step", step.Name, "impl", impl.Name, "error", f.Err)
			failures[i] = f
			continue
		}
		outputs[i] = out
	}

	opts := equiv.Options{
		KeyColumns:        step.KeyColumns,
		OrderingSensitive: step.OrderingSensitive,
		AbsTolerance:      r.plan.Tolerance,
		RelTolerance:      r.plan.Tolerance,
	}
	ref := op.Implementations[0].Name
	checks := make([]report.Check, 0, len(op.Implementations)-1)
	for i := 1; i < len(op.Implementations); i++ {
		c := report.Check{Implementation: op.Implementations[i].Name}
		switch {
		case failures[i] != nil:
			c.Err = failures[i]
		case failures[0] != nil:
			c.Err = fmt.Errorf("reference %s failed: %w", ref, failures[0])
		default:
			res, err := equiv.Compare(outputs[0], outputs[i], opts)
			if err != nil {
				return nil, nil, fmt.Errorf("step %s: %w", step.Name, err)
			}
			c.Result = res
			if !res.Equal {
				r.logger.Warn("implementations differ", "step", step.Name, "reference", ref, "impl", c.Implementation, "mismatches", res.Mismatches)
			}
		}
		checks = append(checks, c)
	}

	for _, out := range outputs {
		if out != nil {
			return checks, out, nil
		}
	}
	return checks, nil, nil
}
