package queryir

import (
	"fmt"
	"strings"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Columns a dedupe input may not carry, compared case-insensitively. SQL
// back ends break order ties by RowIDColumn and rank rows in RankColumn.
const (
	RowIDColumn = "_rowid_"
	RankColumn  = "_tabbench_rn"
)

// fieldIndex maps column names to positions in a schema.
type fieldIndex struct {
	fields []table.Field
	pos    map[string]int
}

func indexFields(fields []table.Field) fieldIndex {
	pos := make(map[string]int, len(fields))
	for i, f := range fields {
		pos[f.Name] = i
	}
	return fieldIndex{fields: fields, pos: pos}
}

func (ix fieldIndex) lookup(param, name string) (table.Field, error) {
	i, ok := ix.pos[name]
	if !ok {
		return table.Field{}, bencherr.NewInvalidConfig(param, "column %q not found", name)
	}
	return ix.fields[i], nil
}

func (ix fieldIndex) has(name string) bool {
	_, ok := ix.pos[name]
	return ok
}

func checkArity(q Query, inputs [][]table.Field) error {
	if len(inputs) != q.Arity() {
		return bencherr.NewInvalidConfig("inputs", "%s takes %d input table(s), got %d", q.Kind(), q.Arity(), len(inputs))
	}
	return nil
}

func checkColumns(ix fieldIndex, param string, names []string, required bool) error {
	if required && len(names) == 0 {
		return bencherr.NewInvalidConfig(param, "at least one column is required")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return bencherr.NewInvalidConfig(param, "column %q listed twice", n)
		}
		seen[n] = true
		if _, err := ix.lookup(param, n); err != nil {
			return err
		}
	}
	return nil
}

func pick(ix fieldIndex, names []string) []table.Field {
	out := make([]table.Field, len(names))
	for i, n := range names {
		out[i] = ix.fields[ix.pos[n]]
	}
	return out
}

// Schema implements Query.
func (q Dedupe) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	for _, f := range inputs[0] {
		if strings.EqualFold(f.Name, RowIDColumn) || strings.EqualFold(f.Name, RankColumn) {
			return nil, bencherr.NewInvalidConfig("inputs", "column name %q is reserved for dedupe", f.Name)
		}
	}
	ix := indexFields(inputs[0])
	if err := checkColumns(ix, "keys", q.Keys, true); err != nil {
		return nil, err
	}
	if q.OrderBy == "" {
		return nil, bencherr.NewInvalidConfig("order_by", "is required")
	}
	if _, err := ix.lookup("order_by", q.OrderBy); err != nil {
		return nil, err
	}
	return inputs[0], nil
}

// ResultType returns the type of Left <Op> Right for the operand types.
func (q Mutate) ResultType(left, right table.Type) table.Type {
	if q.Op == OpDiv || left == table.TypeFloat || right == table.TypeFloat {
		return table.TypeFloat
	}
	return table.TypeInt
}

// Schema implements Query. Target replaces an existing column in place or
// is appended.
func (q Mutate) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	ix := indexFields(inputs[0])
	if q.Target == "" {
		return nil, bencherr.NewInvalidConfig("target", "is required")
	}
	switch q.Op {
	case OpAdd, OpSub, OpMul, OpDiv:
	default:
		return nil, bencherr.NewInvalidConfig("op", "unknown operator %q (want add, sub, mul or div)", q.Op)
	}
	left, err := ix.lookup("left", q.Left)
	if err != nil {
		return nil, err
	}
	if !left.Type.Numeric() {
		return nil, bencherr.NewInvalidConfig("left", "column %q is %s, not numeric", q.Left, left.Type)
	}
	rightType := table.TypeInt
	switch {
	case q.Right != "":
		right, err := ix.lookup("right", q.Right)
		if err != nil {
			return nil, err
		}
		if !right.Type.Numeric() {
			return nil, bencherr.NewInvalidConfig("right", "column %q is %s, not numeric", q.Right, right.Type)
		}
		rightType = right.Type
	case q.Literal != nil:
		switch q.Literal.(type) {
		case table.Int:
		case table.Float:
			rightType = table.TypeFloat
		default:
			return nil, bencherr.NewInvalidConfig("literal", "must be a number")
		}
	default:
		return nil, bencherr.NewInvalidConfig("right", "either right or literal is required")
	}

	out := table.Field{Name: q.Target, Type: q.ResultType(left.Type, rightType)}
	fields := append([]table.Field(nil), inputs[0]...)
	if i, ok := ix.pos[q.Target]; ok {
		fields[i] = out
	} else {
		fields = append(fields, out)
	}
	return fields, nil
}

// ResultType returns the column type an aggregate produces.
func (a Aggregate) ResultType(input table.Type) table.Type {
	switch a.Func {
	case AggCount:
		return table.TypeInt
	case AggMean:
		return table.TypeFloat
	default:
		return input
	}
}

// Schema implements Query.
func (q GroupAggregate) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	ix := indexFields(inputs[0])
	if err := checkColumns(ix, "keys", q.Keys, true); err != nil {
		return nil, err
	}
	if len(q.Aggregates) == 0 {
		return nil, bencherr.NewInvalidConfig("aggregates", "at least one aggregate is required")
	}

	fields := pick(ix, q.Keys)
	names := make(map[string]bool)
	for _, k := range q.Keys {
		names[k] = true
	}
	for i, a := range q.Aggregates {
		param := fmt.Sprintf("aggregates[%d]", i)
		if a.As == "" {
			return nil, bencherr.NewInvalidConfig(param, "output name (as) is required")
		}
		if names[a.As] {
			return nil, bencherr.NewInvalidConfig(param, "output name %q is already used", a.As)
		}
		names[a.As] = true

		var in table.Type
		switch a.Func {
		case AggCount:
			if a.Column != "" {
				if _, err := ix.lookup(param, a.Column); err != nil {
					return nil, err
				}
			}
		case AggSum, AggMean, AggMin, AggMax:
			f, err := ix.lookup(param, a.Column)
			if err != nil {
				return nil, err
			}
			if (a.Func == AggSum || a.Func == AggMean) && !f.Type.Numeric() {
				return nil, bencherr.NewInvalidConfig(param, "%s needs a numeric column, %q is %s", a.Func, a.Column, f.Type)
			}
			in = f.Type
		default:
			return nil, bencherr.NewInvalidConfig(param, "unknown function %q", a.Func)
		}
		fields = append(fields, table.Field{Name: a.As, Type: a.ResultType(in)})
	}
	return fields, nil
}

// Schema implements Query.
func (q Melt) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	ix := indexFields(inputs[0])
	if err := checkColumns(ix, "id_columns", q.IDColumns, false); err != nil {
		return nil, err
	}
	if err := checkColumns(ix, "measure_columns", q.MeasureColumns, true); err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(q.IDColumns))
	for _, id := range q.IDColumns {
		ids[id] = true
	}
	var valueType table.Type
	for i, m := range q.MeasureColumns {
		if ids[m] {
			return nil, bencherr.NewInvalidConfig("measure_columns", "column %q is also an id column", m)
		}
		t := ix.fields[ix.pos[m]].Type
		if i == 0 {
			valueType = t
			continue
		}
		promoted, ok := table.Promote(valueType, t)
		if !ok {
			return nil, bencherr.NewInvalidConfig("measure_columns", "cannot stack %s column %q with %s columns", t, m, valueType)
		}
		valueType = promoted
	}
	if q.VariableName == "" || q.ValueName == "" || q.VariableName == q.ValueName {
		return nil, bencherr.NewInvalidConfig("variable_name", "variable and value names must be set and distinct")
	}
	if ids[q.VariableName] || ids[q.ValueName] {
		return nil, bencherr.NewInvalidConfig("variable_name", "output names clash with an id column")
	}
	fields := pick(ix, q.IDColumns)
	return append(fields,
		table.Field{Name: q.VariableName, Type: table.TypeString},
		table.Field{Name: q.ValueName, Type: valueType},
	), nil
}

// ValueType returns the type of the pivot columns.
func (q Cast) ValueType(input []table.Field) table.Type {
	ix := indexFields(input)
	return ix.fields[ix.pos[q.ValueColumn]].Type
}

// Schema implements Query. Only the id columns are returned; pivot columns
// are known once the variable column's values are.
func (q Cast) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	ix := indexFields(inputs[0])
	if err := checkColumns(ix, "id_columns", q.IDColumns, true); err != nil {
		return nil, err
	}
	if _, err := ix.lookup("variable_column", q.VariableColumn); err != nil {
		return nil, err
	}
	if _, err := ix.lookup("value_column", q.ValueColumn); err != nil {
		return nil, err
	}
	for _, id := range q.IDColumns {
		if id == q.VariableColumn || id == q.ValueColumn {
			return nil, bencherr.NewInvalidConfig("id_columns", "column %q is also the variable or value column", id)
		}
	}
	if q.VariableColumn == q.ValueColumn {
		return nil, bencherr.NewInvalidConfig("value_column", "must differ from variable_column")
	}
	return pick(ix, q.IDColumns), nil
}

// PivotFields names the pivot columns for the given distinct variable
// values, rejecting names that clash with the id columns or each other.
func (q Cast) PivotFields(variables []table.Value, valueType table.Type) ([]table.Field, error) {
	used := make(map[string]bool, len(q.IDColumns)+len(variables))
	for _, id := range q.IDColumns {
		used[id] = true
	}
	fields := make([]table.Field, len(variables))
	for i, v := range variables {
		name := v.String()
		if name == "" || used[name] {
			return nil, fmt.Errorf("cast: variable value %q cannot be used as a column name", name)
		}
		used[name] = true
		fields[i] = table.Field{Name: name, Type: valueType}
	}
	return fields, nil
}

// RightColumns returns the right-hand columns carried into the output with
// their output names.
func (q Join) RightColumns(left, right []table.Field) (src []string, out []table.Field) {
	lix := indexFields(left)
	keys := make(map[string]bool, len(q.On))
	for _, k := range q.On {
		keys[k] = true
	}
	for _, f := range right {
		if keys[f.Name] {
			continue
		}
		name := f.Name
		if lix.has(name) {
			name += JoinSuffix
		}
		src = append(src, f.Name)
		out = append(out, table.Field{Name: name, Type: f.Type})
	}
	return src, out
}

// Schema implements Query.
func (q Join) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	switch q.How {
	case JoinInner, JoinLeft:
	default:
		return nil, bencherr.NewInvalidConfig("how", "unknown join kind %q (want inner or left)", q.How)
	}
	lix, rix := indexFields(inputs[0]), indexFields(inputs[1])
	if err := checkColumns(lix, "on", q.On, true); err != nil {
		return nil, err
	}
	if err := checkColumns(rix, "on", q.On, true); err != nil {
		return nil, err
	}
	for _, k := range q.On {
		lt, rt := lix.fields[lix.pos[k]].Type, rix.fields[rix.pos[k]].Type
		if lt != rt {
			return nil, bencherr.NewInvalidConfig("on", "key %q is %s on the left and %s on the right", k, lt, rt)
		}
	}

	fields := append([]table.Field(nil), inputs[0]...)
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Name] = true
	}
	_, right := q.RightColumns(inputs[0], inputs[1])
	for _, f := range right {
		if seen[f.Name] {
			return nil, bencherr.NewInvalidConfig("on", "right column %q clashes with another output column", f.Name)
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	return fields, nil
}

// Schema implements Query. The output follows the first table's column
// order; Int and Float columns promote to Float.
func (q Append) Schema(inputs [][]table.Field) ([]table.Field, error) {
	if err := checkArity(q, inputs); err != nil {
		return nil, err
	}
	first, second := inputs[0], indexFields(inputs[1])
	if len(first) != len(inputs[1]) {
		return nil, bencherr.NewInvalidConfig("inputs", "append needs matching columns, got %d and %d", len(first), len(inputs[1]))
	}
	fields := make([]table.Field, len(first))
	for i, f := range first {
		other, err := second.lookup("inputs", f.Name)
		if err != nil {
			return nil, err
		}
		t, ok := table.Promote(f.Type, other.Type)
		if !ok {
			return nil, bencherr.NewInvalidConfig("inputs", "column %q is %s in the first table and %s in the second", f.Name, f.Type, other.Type)
		}
		fields[i] = table.Field{Name: f.Name, Type: t}
	}
	return fields, nil
}
