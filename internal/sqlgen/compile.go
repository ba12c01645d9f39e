// Package sqlgen compiles query IR nodes into parameterized SQLite SQL.
//
// Column names come from user data and are always double-quoted. Table
// names are chosen by the engine and must be plain identifiers. Literal
// values are never interpolated; they travel as bound arguments.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// validIdentifier matches table names the compiler accepts unquoted.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// rowNumber is the helper column dedupe ranks rows with.
const rowNumber = queryir.RankColumn

// Source is a loaded table: its SQL name and its schema.
type Source struct {
	Name   string
	Fields []table.Field
}

// Statement is compiled SQL with its bound arguments and the schema of the
// rows it returns.
type Statement struct {
	SQL    string
	Args   []any
	Fields []table.Field
}

// Compiler compiles IR nodes to SQL for SQLite.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile converts q over inputs into one statement. Cast needs the
// distinct variable values first: use CastVariables and CompileCast.
func (c *Compiler) Compile(q queryir.Query, inputs []Source) (*Statement, error) {
	if q == nil {
		return nil, fmt.Errorf("cannot compile nil query")
	}
	for _, in := range inputs {
		if !validIdentifier.MatchString(in.Name) {
			return nil, fmt.Errorf("invalid table name %q: must match pattern %s", in.Name, validIdentifier.String())
		}
	}
	schemas := make([][]table.Field, len(inputs))
	for i, in := range inputs {
		schemas[i] = in.Fields
	}
	out, err := q.Schema(schemas)
	if err != nil {
		return nil, err
	}

	switch query := q.(type) {
	case queryir.Dedupe:
		return c.compileDedupe(query, inputs[0], out), nil
	case queryir.Mutate:
		return c.compileMutate(query, inputs[0], out), nil
	case queryir.GroupAggregate:
		return c.compileGroupAggregate(query, inputs[0], out), nil
	case queryir.Melt:
		return c.compileMelt(query, inputs[0], out), nil
	case queryir.Join:
		return c.compileJoin(query, inputs[0], inputs[1], out), nil
	case queryir.Append:
		return c.compileAppend(inputs[0], inputs[1], out), nil
	case queryir.Cast:
		return nil, fmt.Errorf("cast compiles in two steps: use CastVariables and CompileCast")
	default:
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// Quote returns name as a double-quoted SQL identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Arg converts a cell to a driver argument. Dates travel as YYYY-MM-DD text.
func Arg(v table.Value) any {
	switch x := v.(type) {
	case table.Int:
		return int64(x)
	case table.Float:
		return float64(x)
	case table.Str:
		return string(x)
	case table.Date:
		return x.String()
	default:
		return nil
	}
}

func columnList(prefix string, fields []table.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = prefix + Quote(f.Name)
	}
	return strings.Join(parts, ", ")
}

func quoteAll(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = Quote(n)
	}
	return strings.Join(parts, ", ")
}

// compileDedupe ranks rows per key tuple by the order column, ties broken
// by insertion order, and keeps rank one.
func (c *Compiler) compileDedupe(q queryir.Dedupe, in Source, out []table.Field) *Statement {
	sql := fmt.Sprintf(
		"SELECT %s FROM (SELECT %s, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s ASC, %s ASC) AS %s FROM %s) WHERE %s = 1",
		columnList("", out),
		columnList("", in.Fields),
		quoteAll(q.Keys),
		Quote(q.OrderBy),
		queryir.RowIDColumn,
		rowNumber,
		in.Name,
		rowNumber,
	)
	return &Statement{SQL: sql, Fields: out}
}

var arithOps = map[queryir.ArithOp]string{
	queryir.OpAdd: "+",
	queryir.OpSub: "-",
	queryir.OpMul: "*",
	queryir.OpDiv: "/",
}

func (c *Compiler) compileMutate(q queryir.Mutate, in Source, out []table.Field) *Statement {
	left := Quote(q.Left)
	if q.Op == queryir.OpDiv {
		// integer division truncates in SQLite
		left = "CAST(" + left + " AS REAL)"
	}
	var args []any
	right := "?"
	if q.Right != "" {
		right = Quote(q.Right)
	} else {
		args = append(args, Arg(q.Literal))
	}
	expr := fmt.Sprintf("%s %s %s", left, arithOps[q.Op], right)

	parts := make([]string, len(out))
	for i, f := range out {
		if f.Name == q.Target {
			parts[i] = fmt.Sprintf("%s AS %s", expr, Quote(f.Name))
		} else {
			parts[i] = Quote(f.Name)
		}
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(parts, ", "), in.Name)
	return &Statement{SQL: sql, Args: args, Fields: out}
}

var aggFuncs = map[queryir.AggFunc]string{
	queryir.AggSum:   "SUM",
	queryir.AggMean:  "AVG",
	queryir.AggMin:   "MIN",
	queryir.AggMax:   "MAX",
	queryir.AggCount: "COUNT",
}

func (c *Compiler) compileGroupAggregate(q queryir.GroupAggregate, in Source, out []table.Field) *Statement {
	keys := quoteAll(q.Keys)
	parts := []string{keys}
	for _, a := range q.Aggregates {
		arg := "*"
		if a.Column != "" {
			arg = Quote(a.Column)
		}
		parts = append(parts, fmt.Sprintf("%s(%s) AS %s", aggFuncs[a.Func], arg, Quote(a.As)))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s", strings.Join(parts, ", "), in.Name, keys)
	return &Statement{SQL: sql, Fields: out}
}

func (c *Compiler) compileMelt(q queryir.Melt, in Source, out []table.Field) *Statement {
	ids := ""
	if len(q.IDColumns) > 0 {
		ids = quoteAll(q.IDColumns) + ", "
	}
	selects := make([]string, len(q.MeasureColumns))
	args := make([]any, len(q.MeasureColumns))
	for i, m := range q.MeasureColumns {
		// column aliases of the first arm name the union's columns
		selects[i] = fmt.Sprintf("SELECT %s? AS %s, %s AS %s FROM %s",
			ids, Quote(q.VariableName), Quote(m), Quote(q.ValueName), in.Name)
		args[i] = m
	}
	return &Statement{SQL: strings.Join(selects, " UNION ALL "), Args: args, Fields: out}
}

func (c *Compiler) compileJoin(q queryir.Join, left, right Source, out []table.Field) *Statement {
	kind := "INNER JOIN"
	if q.How == queryir.JoinLeft {
		kind = "LEFT JOIN"
	}

	parts := []string{columnList("l.", left.Fields)}
	src, renamed := q.RightColumns(left.Fields, right.Fields)
	for i, name := range src {
		parts = append(parts, fmt.Sprintf("r.%s AS %s", Quote(name), Quote(renamed[i].Name)))
	}
	conds := make([]string, len(q.On))
	for i, k := range q.On {
		conds[i] = fmt.Sprintf("l.%s = r.%s", Quote(k), Quote(k))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s AS l %s %s AS r ON %s",
		strings.Join(parts, ", "), left.Name, kind, right.Name, strings.Join(conds, " AND "))
	return &Statement{SQL: sql, Fields: out}
}

func (c *Compiler) compileAppend(first, second Source, out []table.Field) *Statement {
	cols := columnList("", out)
	sql := fmt.Sprintf("SELECT %s FROM %s UNION ALL SELECT %s FROM %s", cols, first.Name, cols, second.Name)
	return &Statement{SQL: sql, Fields: out}
}
