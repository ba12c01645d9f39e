// Package table provides the immutable in-memory columnar structure that
// every loader, back end and checker in tabbench exchanges.
//
// A Table is an ordered sequence of named columns of equal length. Column
// names are unique. Tables and their columns are never modified after
// construction; operations build new tables instead.
package table

import (
	"fmt"
)

// Field names a column and its semantic type.
type Field struct {
	Name string
	Type Type
}

// Column is a named sequence of cells of a single semantic type.
type Column struct {
	name   string
	typ    Type
	values []Value
}

// NewColumn creates a column. The column takes ownership of values; callers
// must not modify the slice afterwards. Int values in a float column are
// converted to Float.
func NewColumn(name string, typ Type, values []Value) *Column {
	if typ == TypeFloat {
		for i, v := range values {
			values[i] = typ.Coerce(v)
		}
	}
	return &Column{name: name, typ: typ, values: values}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the column type.
func (c *Column) Type() Type { return c.typ }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.values) }

// Value returns the cell at row i.
func (c *Column) Value(i int) Value { return c.values[i] }

// Values returns the cells. The returned slice must not be modified.
func (c *Column) Values() []Value { return c.values }

// Field returns the column's name and type.
func (c *Column) Field() Field { return Field{Name: c.name, Type: c.typ} }

// Table is an ordered set of equal-length, uniquely named columns.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a table from columns. It fails if two columns share a name,
// if column lengths differ or if a cell does not match its column type.
func New(columns ...*Column) (*Table, error) {
	t := &Table{
		columns: make([]*Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if c.name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := t.index[c.name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.name, c.Len(), t.rows)
		}
		for row, v := range c.values {
			if v == nil {
				c.values[row] = Null{}
				continue
			}
			if !c.typ.Accepts(v) {
				return nil, fmt.Errorf("column %q row %d: %T value %q in %s column", c.name, row, v, v.String(), c.typ)
			}
		}
		t.columns[i] = c
		t.index[c.name] = i
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(columns ...*Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRows builds a table from row-major cells.
func FromRows(schema []Field, rows [][]Value) (*Table, error) {
	cols := make([][]Value, len(schema))
	for i := range cols {
		cols[i] = make([]Value, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), len(schema))
		}
		for c, v := range row {
			cols[c][r] = v
		}
	}
	columns := make([]*Column, len(schema))
	for i, f := range schema {
		columns[i] = NewColumn(f.Name, f.Type, cols[i])
	}
	return New(columns...)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.columns[i] }

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	i, ok := t.index[name]
	if !ok {
		return -1
	}
	return i
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// Schema returns the fields of all columns in order.
func (t *Table) Schema() []Field {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = c.Field()
	}
	return fields
}

// Row returns a copy of row i across all columns.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for c, col := range t.columns {
		row[c] = col.values[i]
	}
	return row
}

// Require returns the named columns or an error naming the first missing one.
func (t *Table) Require(names ...string) ([]*Column, error) {
	cols := make([]*Column, len(names))
	for i, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found (have %v)", name, t.Names())
		}
		cols[i] = c
	}
	return cols, nil
}

// Take builds a new table holding the given rows, in order, of every column.
func (t *Table) Take(rows []int) *Table {
	columns := make([]*Column, len(t.columns))
	for c, col := range t.columns {
		values := make([]Value, len(rows))
		for i, r := range rows {
			values[i] = col.values[r]
		}
		columns[c] = &Column{name: col.name, typ: col.typ, values: values}
	}
	return &Table{columns: columns, index: t.index, rows: len(rows)}
}
