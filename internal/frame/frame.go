// Package frame executes query IR nodes in memory over columnar tables.
//
// It is the "native data frame" back end: hash grouping on encoded row
// keys, hash joins built on the right-hand table and column-at-a-time
// arithmetic. Inputs are never modified; every call returns a new table.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Name is the back-end name used in plans and reports.
const Name = "frame"

// ErrIntegerOverflow is returned when an integer sum or product does not fit
// in 64 bits.
var ErrIntegerOverflow = errors.New("integer overflow")

// Engine is the in-memory back end. The zero value is ready to use and
// discards its log output.
type Engine struct {
	logger *slog.Logger
}

// New returns an engine that logs query plans to logger.
func New(logger *slog.Logger) Engine {
	return Engine{logger: logger}
}

// Name implements ops.Backend.
func (Engine) Name() string { return Name }

// Execute implements ops.Backend.
func (Engine) Execute(ctx context.Context, q queryir.Query, inputs []*table.Table) (*table.Table, error) {
	return Execute(ctx, q, inputs)
}

// Prepare checks q against the input schemas and logs how it will run.
// It is called once per step, outside timing.
func (e Engine) Prepare(_ context.Context, q queryir.Query, inputs []*table.Table) error {
	out, err := q.Schema(schemasOf(inputs))
	if err != nil {
		return err
	}
	rows := make([]int, len(inputs))
	for i, t := range inputs {
		rows[i] = t.NumRows()
	}
	e.log().Debug("frame plan", "kind", q.Kind(), "input_rows", rows, "output_columns", len(out))
	return nil
}

func (e Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.logger
}

func schemasOf(inputs []*table.Table) [][]table.Field {
	schemas := make([][]table.Field, len(inputs))
	for i, t := range inputs {
		schemas[i] = t.Schema()
	}
	return schemas
}

// Execute runs q over inputs.
func Execute(ctx context.Context, q queryir.Query, inputs []*table.Table) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := q.Schema(schemasOf(inputs))
	if err != nil {
		return nil, err
	}

	switch query := q.(type) {
	case queryir.Dedupe:
		return dedupe(inputs[0], query)
	case queryir.Mutate:
		return mutate(inputs[0], query, out)
	case queryir.GroupAggregate:
		return groupAggregate(inputs[0], query, out)
	case queryir.Melt:
		return melt(inputs[0], query, out)
	case queryir.Cast:
		return cast(inputs[0], query, out)
	case queryir.Join:
		return join(inputs[0], inputs[1], query, out)
	case queryir.Append:
		return appendRows(inputs[0], inputs[1], out)
	default:
		return nil, fmt.Errorf("frame: unsupported query %T", q)
	}
}

// addInt, subInt and mulInt report ok=false when the result overflows.
func addInt(x, y int64) (int64, bool) {
	r := x + y
	return r, (x >= 0) != (y >= 0) || (r >= 0) == (x >= 0)
}

func subInt(x, y int64) (int64, bool) {
	r := x - y
	return r, (x >= 0) == (y >= 0) || (r >= 0) == (x >= 0)
}

func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, true
	}
	r := x * y
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return r, false
	}
	return r, r/y == x
}

// build assembles columns into a table from the output schema.
func build(out []table.Field, values [][]table.Value) (*table.Table, error) {
	cols := make([]*table.Column, len(out))
	for i, f := range out {
		cols[i] = table.NewColumn(f.Name, f.Type, values[i])
	}
	return table.New(cols...)
}

// groups assigns every row a dense group number by its key cells, in order
// of first appearance. firsts holds the first row of each group.
func groups(keyCols []*table.Column, rows int) (ids []int, firsts []int) {
	index := make(map[string]int)
	ids = make([]int, rows)
	var buf []byte
	for r := 0; r < rows; r++ {
		buf = table.RowKey(buf[:0], keyCols, r)
		g, ok := index[string(buf)]
		if !ok {
			g = len(firsts)
			index[string(buf)] = g
			firsts = append(firsts, r)
		}
		ids[r] = g
	}
	return ids, firsts
}

func dedupe(t *table.Table, q queryir.Dedupe) (*table.Table, error) {
	keyCols, err := t.Require(q.Keys...)
	if err != nil {
		return nil, err
	}
	order, _ := t.Column(q.OrderBy)

	ids, firsts := groups(keyCols, t.NumRows())
	best := append([]int(nil), firsts...)
	for r, g := range ids {
		if table.Compare(order.Value(r), order.Value(best[g])) < 0 {
			best[g] = r
		}
	}
	return t.Take(best), nil
}

func groupAggregate(t *table.Table, q queryir.GroupAggregate, out []table.Field) (*table.Table, error) {
	keyCols, err := t.Require(q.Keys...)
	if err != nil {
		return nil, err
	}
	ids, firsts := groups(keyCols, t.NumRows())

	values := make([][]table.Value, len(out))
	for i, c := range keyCols {
		vals := make([]table.Value, len(firsts))
		for g, r := range firsts {
			vals[g] = c.Value(r)
		}
		values[i] = vals
	}
	for i, a := range q.Aggregates {
		var col *table.Column
		if a.Column != "" {
			col, _ = t.Column(a.Column)
		}
		vals, err := reduce(a, col, ids, len(firsts))
		if err != nil {
			return nil, fmt.Errorf("%s of %s: %w", a.Func, a.Column, err)
		}
		values[len(keyCols)+i] = vals
	}
	return build(out, values)
}

type accumulator struct {
	n    int64
	sumI int64
	sumF float64
	best table.Value
}

// reduce evaluates one aggregate for every group. Nulls are skipped; a
// group with no non-null input yields Null except for count. An integer sum
// that overflows is an error; an integer mean is accumulated in float64.
func reduce(a queryir.Aggregate, col *table.Column, ids []int, ngroups int) ([]table.Value, error) {
	acc := make([]accumulator, ngroups)
	for r, g := range ids {
		if col == nil {
			acc[g].n++
			continue
		}
		v := col.Value(r)
		if table.IsNull(v) {
			continue
		}
		st := &acc[g]
		st.n++
		switch a.Func {
		case queryir.AggSum, queryir.AggMean:
			switch x := v.(type) {
			case table.Int:
				if a.Func == queryir.AggSum {
					sum, ok := addInt(st.sumI, int64(x))
					if !ok {
						return nil, ErrIntegerOverflow
					}
					st.sumI = sum
				}
				st.sumF += float64(x)
			case table.Float:
				st.sumF += float64(x)
			}
		case queryir.AggMin:
			if st.best == nil || table.Compare(v, st.best) < 0 {
				st.best = v
			}
		case queryir.AggMax:
			if st.best == nil || table.Compare(v, st.best) > 0 {
				st.best = v
			}
		}
	}

	intSum := col != nil && col.Type() == table.TypeInt
	result := make([]table.Value, ngroups)
	for g, st := range acc {
		if st.n == 0 && a.Func != queryir.AggCount {
			result[g] = table.Null{}
			continue
		}
		switch a.Func {
		case queryir.AggCount:
			result[g] = table.Int(st.n)
		case queryir.AggSum:
			if intSum {
				result[g] = table.Int(st.sumI)
			} else {
				result[g] = table.Float(st.sumF)
			}
		case queryir.AggMean:
			result[g] = table.Float(st.sumF / float64(st.n))
		default:
			result[g] = st.best
		}
	}
	return result, nil
}

func melt(t *table.Table, q queryir.Melt, out []table.Field) (*table.Table, error) {
	idCols, err := t.Require(q.IDColumns...)
	if err != nil {
		return nil, err
	}
	measures, err := t.Require(q.MeasureColumns...)
	if err != nil {
		return nil, err
	}

	n := t.NumRows() * len(measures)
	values := make([][]table.Value, len(out))
	for i := range values {
		values[i] = make([]table.Value, 0, n)
	}
	varIdx, valIdx := len(idCols), len(idCols)+1
	for _, m := range measures {
		name := table.Str(m.Name())
		for r := 0; r < t.NumRows(); r++ {
			for i, c := range idCols {
				values[i] = append(values[i], c.Value(r))
			}
			values[varIdx] = append(values[varIdx], name)
			values[valIdx] = append(values[valIdx], m.Value(r))
		}
	}
	return build(out, values)
}
