package queryir

import (
	"fmt"
	"math"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Params is the union of every kind's parameters as written in a plan
// step. Only the fields relevant to the step's kind are read.
type Params struct {
	Keys    []string `yaml:"keys,omitempty" json:"keys,omitempty"`
	OrderBy string   `yaml:"order_by,omitempty" json:"order_by,omitempty"`

	Target  string   `yaml:"target,omitempty" json:"target,omitempty"`
	Op      string   `yaml:"op,omitempty" json:"op,omitempty"`
	Left    string   `yaml:"left,omitempty" json:"left,omitempty"`
	Right   string   `yaml:"right,omitempty" json:"right,omitempty"`
	Literal *float64 `yaml:"literal,omitempty" json:"literal,omitempty"`

	Aggregates []AggregateParams `yaml:"aggregates,omitempty" json:"aggregates,omitempty"`

	IDColumns      []string `yaml:"id_columns,omitempty" json:"id_columns,omitempty"`
	MeasureColumns []string `yaml:"measure_columns,omitempty" json:"measure_columns,omitempty"`
	VariableName   string   `yaml:"variable_name,omitempty" json:"variable_name,omitempty"`
	ValueName      string   `yaml:"value_name,omitempty" json:"value_name,omitempty"`
	VariableColumn string   `yaml:"variable_column,omitempty" json:"variable_column,omitempty"`
	ValueColumn    string   `yaml:"value_column,omitempty" json:"value_column,omitempty"`

	On  []string `yaml:"on,omitempty" json:"on,omitempty"`
	How string   `yaml:"how,omitempty" json:"how,omitempty"`
}

// AggregateParams is one entry of Params.Aggregates.
type AggregateParams struct {
	Func   string `yaml:"func" json:"func"`
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
	As     string `yaml:"as,omitempty" json:"as,omitempty"`
}

// FromParams builds the query node for kind. Defaults: melt names its
// outputs "variable" and "value", join is inner, and an aggregate without
// "as" is named func_column (or "count").
func FromParams(kind string, p Params) (Query, error) {
	switch kind {
	case KindDedupe:
		return Dedupe{Keys: p.Keys, OrderBy: p.OrderBy}, nil

	case KindMutate:
		q := Mutate{Target: p.Target, Op: ArithOp(p.Op), Left: p.Left, Right: p.Right}
		if p.Literal != nil {
			if p.Right != "" {
				return nil, bencherr.NewInvalidConfig("literal", "cannot be combined with right")
			}
			q.Literal = literalValue(*p.Literal)
		}
		return q, nil

	case KindGroupAggregate:
		q := GroupAggregate{Keys: p.Keys}
		for _, a := range p.Aggregates {
			agg := Aggregate{Func: AggFunc(a.Func), Column: a.Column, As: a.As}
			if agg.As == "" {
				agg.As = a.Func
				if a.Column != "" {
					agg.As = fmt.Sprintf("%s_%s", a.Func, a.Column)
				}
			}
			q.Aggregates = append(q.Aggregates, agg)
		}
		return q, nil

	case KindMelt:
		q := Melt{
			IDColumns:      p.IDColumns,
			MeasureColumns: p.MeasureColumns,
			VariableName:   p.VariableName,
			ValueName:      p.ValueName,
		}
		if q.VariableName == "" {
			q.VariableName = "variable"
		}
		if q.ValueName == "" {
			q.ValueName = "value"
		}
		return q, nil

	case KindCast:
		return Cast{IDColumns: p.IDColumns, VariableColumn: p.VariableColumn, ValueColumn: p.ValueColumn}, nil

	case KindJoin:
		how := JoinKind(p.How)
		if how == "" {
			how = JoinInner
		}
		return Join{On: p.On, How: how}, nil

	case KindAppend:
		return Append{}, nil

	default:
		return nil, bencherr.NewInvalidConfig("kind", "unknown operation kind %q (want one of %v)", kind, Kinds)
	}
}

// literalValue keeps integral literals as Int so int columns stay int.
func literalValue(f float64) table.Value {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return table.Int(int64(f))
	}
	return table.Float(f)
}
