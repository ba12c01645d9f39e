package queryir

import (
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Operation kinds as they appear in plan files.
const (
	KindDedupe         = "dedupe"
	KindMutate         = "mutate"
	KindGroupAggregate = "group_aggregate"
	KindMelt           = "melt"
	KindCast           = "cast"
	KindJoin           = "join"
	KindAppend         = "append"
)

// Kinds lists every operation kind in documentation order.
var Kinds = []string{KindDedupe, KindMutate, KindGroupAggregate, KindMelt, KindCast, KindJoin, KindAppend}

// Query is a sealed interface over the operation nodes.
type Query interface {
	queryNode()

	// Kind returns the plan name of the node type.
	Kind() string

	// Arity is the number of input tables the node consumes.
	Arity() int

	// Schema derives the output columns from the input schemas and
	// rejects parameters that do not fit them.
	Schema(inputs [][]table.Field) ([]table.Field, error)
}

// Dedupe keeps one row per distinct Keys tuple: the row with the smallest
// OrderBy value, ties going to the earliest input row. Columns are
// unchanged.
type Dedupe struct {
	Keys    []string
	OrderBy string
}

func (Dedupe) queryNode()   {}
func (Dedupe) Kind() string { return KindDedupe }
func (Dedupe) Arity() int   { return 1 }

// ArithOp is a binary arithmetic operator for Mutate.
type ArithOp string

const (
	OpAdd ArithOp = "add"
	OpSub ArithOp = "sub"
	OpMul ArithOp = "mul"
	OpDiv ArithOp = "div"
)

// Mutate sets Target to Left <Op> Right, where Right is a column or, when
// Right is empty, Literal. Division always yields a float; other operators
// yield an int only when both operands are ints.
type Mutate struct {
	Target  string
	Op      ArithOp
	Left    string
	Right   string
	Literal table.Value // Int or Float; used when Right is empty
}

func (Mutate) queryNode()   {}
func (Mutate) Kind() string { return KindMutate }
func (Mutate) Arity() int   { return 1 }

// AggFunc names an aggregate function.
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
)

// Aggregate reduces Column within each group into a column named As.
// AggCount with an empty Column counts rows.
type Aggregate struct {
	Func   AggFunc
	Column string
	As     string
}

// GroupAggregate groups by Keys and emits the keys followed by one column
// per aggregate.
type GroupAggregate struct {
	Keys       []string
	Aggregates []Aggregate
}

func (GroupAggregate) queryNode()   {}
func (GroupAggregate) Kind() string { return KindGroupAggregate }
func (GroupAggregate) Arity() int   { return 1 }

// Melt turns MeasureColumns into (VariableName, ValueName) pairs, one row
// per input row and measure, keeping IDColumns.
type Melt struct {
	IDColumns      []string
	MeasureColumns []string
	VariableName   string
	ValueName      string
}

func (Melt) queryNode()   {}
func (Melt) Kind() string { return KindMelt }
func (Melt) Arity() int   { return 1 }

// Cast spreads ValueColumn into one column per distinct non-null value of
// VariableColumn, one row per IDColumns tuple. Duplicate cells keep the
// largest value; missing cells are Null. Pivot columns are ordered by the
// variable values.
type Cast struct {
	IDColumns      []string
	VariableColumn string
	ValueColumn    string
}

func (Cast) queryNode()   {}
func (Cast) Kind() string { return KindCast }
func (Cast) Arity() int   { return 1 }

// JoinKind selects inner or left join semantics.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// JoinSuffix is appended to right-hand columns whose names clash with a
// left-hand column.
const JoinSuffix = "_y"

// Join matches rows of two tables on equal On columns. The output holds the
// left columns followed by the right non-key columns.
type Join struct {
	On  []string
	How JoinKind
}

func (Join) queryNode()   {}
func (Join) Kind() string { return KindJoin }
func (Join) Arity() int   { return 2 }

// Append stacks the rows of the second table under the first. The second
// table's columns are matched by name.
type Append struct{}

func (Append) queryNode()   {}
func (Append) Kind() string { return KindAppend }
func (Append) Arity() int   { return 2 }
