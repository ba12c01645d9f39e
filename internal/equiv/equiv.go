// Package equiv decides whether two tables hold the same data.
//
// Column order never matters. Row order matters only when asked for;
// otherwise both tables are sorted by the key columns, ties broken by the
// non-float columns and then the full row, before cells are compared
// pairwise. Numbers compare within an
// absolute or relative tolerance, and strings compare after Unicode NFC
// normalisation.
package equiv

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// DefaultTolerance is used for AbsTolerance and RelTolerance when zero.
const DefaultTolerance = 1e-9

// defaultMaxDiffs caps the cell mismatches spelled out in Result.Diff.
const defaultMaxDiffs = 10

// Options configures a comparison.
type Options struct {
	// KeyColumns order rows before comparison. Empty sorts by whole rows.
	KeyColumns []string

	// OrderingSensitive compares rows in their given order.
	OrderingSensitive bool

	AbsTolerance float64
	RelTolerance float64

	// MaxDiffs caps the mismatching cells described in the diff.
	MaxDiffs int
}

// Result is the outcome of a comparison.
type Result struct {
	Equal bool
	Diff  string

	// Mismatches counts differing cells, or the column or row delta when
	// the shapes differ.
	Mismatches int

	OnlyLeft  []string
	OnlyRight []string
	RowDelta  int
}

// Compare reports whether a and b are equivalent. The result is symmetric
// in a and b. Key columns missing from either table are an
// InvalidConfigError.
func Compare(a, b *table.Table, opts Options) (Result, error) {
	if opts.AbsTolerance < 0 || opts.RelTolerance < 0 {
		return Result{}, bencherr.NewInvalidConfig("tolerance", "must not be negative")
	}
	if opts.AbsTolerance == 0 {
		opts.AbsTolerance = DefaultTolerance
	}
	if opts.RelTolerance == 0 {
		opts.RelTolerance = DefaultTolerance
	}
	if opts.MaxDiffs <= 0 {
		opts.MaxDiffs = defaultMaxDiffs
	}
	for _, k := range opts.KeyColumns {
		if !a.Has(k) {
			return Result{}, bencherr.NewInvalidConfig("key_columns", "key column %q not found in left table (have %v)", k, a.Names())
		}
		if !b.Has(k) {
			return Result{}, bencherr.NewInvalidConfig("key_columns", "key column %q not found in right table (have %v)", k, b.Names())
		}
	}

	if onlyA, onlyB := columnDelta(a, b); len(onlyA)+len(onlyB) > 0 {
		return Result{
			Diff:       fmt.Sprintf("columns differ: only in left %v, only in right %v", onlyA, onlyB),
			Mismatches: len(onlyA) + len(onlyB),
			OnlyLeft:   onlyA,
			OnlyRight:  onlyB,
		}, nil
	}
	if a.NumRows() != b.NumRows() {
		delta := a.NumRows() - b.NumRows()
		return Result{
			Diff:       fmt.Sprintf("row count differs: left %d, right %d (delta %+d)", a.NumRows(), b.NumRows(), delta),
			Mismatches: abs(delta),
			RowDelta:   delta,
		}, nil
	}

	names := a.Names()
	slices.Sort(names)
	rowsA, rowsB := materialize(a, names), materialize(b, names)
	if !opts.OrderingSensitive {
		keys := append(keyPositions(names, opts.KeyColumns), exactPositions(names, a, b)...)
		sortRows(rowsA, keys)
		sortRows(rowsB, keys)
	}

	var diff strings.Builder
	mismatches := 0
	for r := range rowsA {
		for c, name := range names {
			x, y := rowsA[r][c], rowsB[r][c]
			if cellsEqual(x, y, opts.AbsTolerance, opts.RelTolerance) {
				continue
			}
			mismatches++
			if mismatches <= opts.MaxDiffs {
				fmt.Fprintf(&diff, "row %d column %q: left %s, right %s\n", r, name, x, y)
			}
		}
	}
	if mismatches > opts.MaxDiffs {
		fmt.Fprintf(&diff, "... and %d more mismatched cells\n", mismatches-opts.MaxDiffs)
	}

	return Result{
		Equal:      mismatches == 0,
		Diff:       strings.TrimSuffix(diff.String(), "\n"),
		Mismatches: mismatches,
	}, nil
}

func columnDelta(a, b *table.Table) (onlyA, onlyB []string) {
	for _, n := range a.Names() {
		if !b.Has(n) {
			onlyA = append(onlyA, n)
		}
	}
	for _, n := range b.Names() {
		if !a.Has(n) {
			onlyB = append(onlyB, n)
		}
	}
	slices.Sort(onlyA)
	slices.Sort(onlyB)
	return onlyA, onlyB
}

// materialize returns the rows of t with columns in names order and string
// cells NFC-normalised.
func materialize(t *table.Table, names []string) [][]table.Value {
	cols := make([]*table.Column, len(names))
	for i, n := range names {
		cols[i], _ = t.Column(n)
	}
	rows := make([][]table.Value, t.NumRows())
	for r := range rows {
		row := make([]table.Value, len(cols))
		for c, col := range cols {
			v := col.Value(r)
			if s, ok := v.(table.Str); ok {
				v = table.Str(norm.NFC.String(string(s)))
			}
			row[c] = v
		}
		rows[r] = row
	}
	return rows
}

func keyPositions(names, keys []string) []int {
	pos := make([]int, len(keys))
	for i, k := range keys {
		pos[i], _ = slices.BinarySearch(names, k)
	}
	return pos
}

// exactPositions returns the positions in names of columns that hold no
// floats in any of tables. Sorting on them first keeps rows that differ
// only within tolerance from being ordered differently on each side.
func exactPositions(names []string, tables ...*table.Table) []int {
	var pos []int
	for i, n := range names {
		exact := true
		for _, t := range tables {
			if c, _ := t.Column(n); c.Type() == table.TypeFloat {
				exact = false
			}
		}
		if exact {
			pos = append(pos, i)
		}
	}
	return pos
}

// sortRows stable-sorts by the key positions, then by the whole row.
func sortRows(rows [][]table.Value, keys []int) {
	slices.SortStableFunc(rows, func(x, y []table.Value) int {
		for _, k := range keys {
			if c := table.Compare(x[k], y[k]); c != 0 {
				return c
			}
		}
		return table.CompareRows(x, y)
	})
}

func cellsEqual(x, y table.Value, absTol, relTol float64) bool {
	if table.IsNull(x) || table.IsNull(y) {
		return table.IsNull(x) && table.IsNull(y)
	}
	fx, xNum := table.AsFloat(x)
	fy, yNum := table.AsFloat(y)
	if xNum || yNum {
		if !xNum || !yNum {
			return false
		}
		if math.IsNaN(fx) || math.IsNaN(fy) {
			return math.IsNaN(fx) && math.IsNaN(fy)
		}
		if fx == fy {
			return true
		}
		d := math.Abs(fx - fy)
		return d <= absTol || d <= relTol*math.Max(math.Abs(fx), math.Abs(fy))
	}
	return table.Compare(x, y) == 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
