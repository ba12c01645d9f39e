package sqlgen

import (
	"fmt"
	"strings"

	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// CastVariables returns the statement listing the distinct non-null values
// of the cast's variable column in ascending order. Its single result
// column has the variable column's type.
func (c *Compiler) CastVariables(q queryir.Cast, in Source) (*Statement, error) {
	if _, err := c.castSchema(q, in); err != nil {
		return nil, err
	}
	var field table.Field
	for _, f := range in.Fields {
		if f.Name == q.VariableColumn {
			field = f
		}
	}
	v := Quote(q.VariableColumn)
	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s ASC", v, in.Name, v, v)
	return &Statement{SQL: sql, Fields: []table.Field{field}}, nil
}

// CompileCast builds the pivot statement for the given variable values, as
// returned by the CastVariables statement. Duplicate cells keep the
// largest value.
func (c *Compiler) CompileCast(q queryir.Cast, in Source, variables []table.Value) (*Statement, error) {
	out, err := c.castSchema(q, in)
	if err != nil {
		return nil, err
	}
	pivots, err := q.PivotFields(variables, q.ValueType(in.Fields))
	if err != nil {
		return nil, err
	}

	ids := quoteAll(q.IDColumns)
	parts := []string{ids}
	args := make([]any, len(variables))
	for i, v := range variables {
		parts = append(parts, fmt.Sprintf("MAX(CASE WHEN %s = ? THEN %s END) AS %s",
			Quote(q.VariableColumn), Quote(q.ValueColumn), Quote(pivots[i].Name)))
		args[i] = Arg(v)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s", strings.Join(parts, ", "), in.Name, ids)
	return &Statement{SQL: sql, Args: args, Fields: append(out, pivots...)}, nil
}

func (c *Compiler) castSchema(q queryir.Cast, in Source) ([]table.Field, error) {
	if !validIdentifier.MatchString(in.Name) {
		return nil, fmt.Errorf("invalid table name %q: must match pattern %s", in.Name, validIdentifier.String())
	}
	return q.Schema([][]table.Field{in.Fields})
}
