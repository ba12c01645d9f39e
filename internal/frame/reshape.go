package frame

import (
	"fmt"
	"slices"

	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

func mutate(t *table.Table, q queryir.Mutate, out []table.Field) (*table.Table, error) {
	left, _ := t.Column(q.Left)
	var right *table.Column
	if q.Right != "" {
		right, _ = t.Column(q.Right)
	}

	target := out[len(out)-1]
	pos := t.Index(q.Target)
	if pos >= 0 {
		target = out[pos]
	}

	computed := make([]table.Value, t.NumRows())
	for r := range computed {
		rv := q.Literal
		if right != nil {
			rv = right.Value(r)
		}
		v, err := arith(q.Op, target.Type, left.Value(r), rv)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", q.Target, r, err)
		}
		computed[r] = v
	}

	cols := t.Columns()
	col := table.NewColumn(q.Target, target.Type, computed)
	if pos >= 0 {
		cols[pos] = col
	} else {
		cols = append(cols, col)
	}
	return table.New(cols...)
}

// arith applies op with SQL null rules: a Null operand or a zero divisor
// yields Null. Integer results that overflow are an error.
func arith(op queryir.ArithOp, typ table.Type, a, b table.Value) (table.Value, error) {
	if table.IsNull(a) || table.IsNull(b) {
		return table.Null{}, nil
	}
	if typ == table.TypeInt {
		x, y := int64(a.(table.Int)), int64(b.(table.Int))
		var (
			r  int64
			ok bool
		)
		switch op {
		case queryir.OpAdd:
			r, ok = addInt(x, y)
		case queryir.OpSub:
			r, ok = subInt(x, y)
		case queryir.OpMul:
			r, ok = mulInt(x, y)
		default:
			return table.Null{}, nil
		}
		if !ok {
			return nil, ErrIntegerOverflow
		}
		return table.Int(r), nil
	}

	x, _ := table.AsFloat(a)
	y, _ := table.AsFloat(b)
	switch op {
	case queryir.OpAdd:
		return table.Float(x + y), nil
	case queryir.OpSub:
		return table.Float(x - y), nil
	case queryir.OpMul:
		return table.Float(x * y), nil
	case queryir.OpDiv:
		if y == 0 {
			return table.Null{}, nil
		}
		return table.Float(x / y), nil
	}
	return table.Null{}, nil
}

func cast(t *table.Table, q queryir.Cast, out []table.Field) (*table.Table, error) {
	idCols, err := t.Require(q.IDColumns...)
	if err != nil {
		return nil, err
	}
	variable, _ := t.Column(q.VariableColumn)
	value, _ := t.Column(q.ValueColumn)

	// distinct non-null variables in sorted order
	var variables []table.Value
	seen := make(map[string]bool)
	var buf []byte
	for _, v := range variable.Values() {
		if table.IsNull(v) {
			continue
		}
		buf = table.AppendKey(buf[:0], v)
		if !seen[string(buf)] {
			seen[string(buf)] = true
			variables = append(variables, v)
		}
	}
	slices.SortFunc(variables, table.Compare)

	pivots, err := q.PivotFields(variables, value.Type())
	if err != nil {
		return nil, err
	}
	slot := make(map[string]int, len(variables))
	for i, v := range variables {
		slot[string(table.AppendKey(nil, v))] = i
	}

	ids, firsts := groups(idCols, t.NumRows())
	cells := make([][]table.Value, len(pivots))
	for i := range cells {
		cells[i] = make([]table.Value, len(firsts))
		for g := range cells[i] {
			cells[i][g] = table.Null{}
		}
	}
	for r, g := range ids {
		v := variable.Value(r)
		x := value.Value(r)
		if table.IsNull(v) || table.IsNull(x) {
			continue
		}
		i := slot[string(table.AppendKey(buf[:0], v))]
		if cur := cells[i][g]; table.IsNull(cur) || table.Compare(x, cur) > 0 {
			cells[i][g] = x
		}
	}

	fields := append(append([]table.Field(nil), out...), pivots...)
	values := make([][]table.Value, 0, len(fields))
	for _, c := range idCols {
		vals := make([]table.Value, len(firsts))
		for g, r := range firsts {
			vals[g] = c.Value(r)
		}
		values = append(values, vals)
	}
	values = append(values, cells...)
	return build(fields, values)
}

func join(left, right *table.Table, q queryir.Join, out []table.Field) (*table.Table, error) {
	lkeys, err := left.Require(q.On...)
	if err != nil {
		return nil, err
	}
	rkeys, err := right.Require(q.On...)
	if err != nil {
		return nil, err
	}

	// build on the right; Null keys never match
	index := make(map[string][]int)
	var buf []byte
	for r := 0; r < right.NumRows(); r++ {
		if hasNull(rkeys, r) {
			continue
		}
		buf = table.RowKey(buf[:0], rkeys, r)
		index[string(buf)] = append(index[string(buf)], r)
	}

	var lrows, rrows []int
	for l := 0; l < left.NumRows(); l++ {
		var matches []int
		if !hasNull(lkeys, l) {
			buf = table.RowKey(buf[:0], lkeys, l)
			matches = index[string(buf)]
		}
		for _, r := range matches {
			lrows = append(lrows, l)
			rrows = append(rrows, r)
		}
		if len(matches) == 0 && q.How == queryir.JoinLeft {
			lrows = append(lrows, l)
			rrows = append(rrows, -1)
		}
	}

	values := make([][]table.Value, 0, len(out))
	for _, c := range left.Columns() {
		vals := make([]table.Value, len(lrows))
		for i, r := range lrows {
			vals[i] = c.Value(r)
		}
		values = append(values, vals)
	}
	src, _ := q.RightColumns(left.Schema(), right.Schema())
	for _, name := range src {
		c, _ := right.Column(name)
		vals := make([]table.Value, len(rrows))
		for i, r := range rrows {
			if r < 0 {
				vals[i] = table.Null{}
			} else {
				vals[i] = c.Value(r)
			}
		}
		values = append(values, vals)
	}
	return build(out, values)
}

func hasNull(cols []*table.Column, r int) bool {
	for _, c := range cols {
		if table.IsNull(c.Value(r)) {
			return true
		}
	}
	return false
}

func appendRows(first, second *table.Table, out []table.Field) (*table.Table, error) {
	values := make([][]table.Value, len(out))
	for i, f := range out {
		a, _ := first.Column(f.Name)
		b, _ := second.Column(f.Name)
		vals := make([]table.Value, 0, a.Len()+b.Len())
		vals = append(vals, a.Values()...)
		vals = append(vals, b.Values()...)
		values[i] = vals
	}
	return build(out, values)
}
