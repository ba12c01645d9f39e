package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ng-nicholas/tabbench/internal/table"
)

// Ints builds an int column.
func Ints(name string, vals ...int64) *table.Column {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		out[i] = table.Int(v)
	}
	return table.NewColumn(name, table.TypeInt, out)
}

// Floats builds a float column.
func Floats(name string, vals ...float64) *table.Column {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		out[i] = table.Float(v)
	}
	return table.NewColumn(name, table.TypeFloat, out)
}

// Strs builds a string column.
func Strs(name string, vals ...string) *table.Column {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		out[i] = table.Str(v)
	}
	return table.NewColumn(name, table.TypeString, out)
}

// Dates builds a date column from YYYY-MM-DD strings. It panics on a bad
// date.
func Dates(name string, vals ...string) *table.Column {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		d, err := table.ParseDate(v)
		if err != nil {
			panic(err)
		}
		out[i] = d
	}
	return table.NewColumn(name, table.TypeDate, out)
}

// Values builds a column of the given type from raw cells; nil is Null.
func Values(name string, typ table.Type, vals ...table.Value) *table.Column {
	return table.NewColumn(name, typ, append([]table.Value(nil), vals...))
}

// Table builds a table from columns, failing the test on error.
func Table(t testing.TB, cols ...*table.Column) *table.Table {
	t.Helper()
	tbl, err := table.New(cols...)
	require.NoError(t, err, "build table")
	return tbl
}

// Contacts returns the five-row contact log used across back-end tests:
// user 1 contacts property 10 twice and property 11 once, user 2 contacts
// property 10 twice.
func Contacts(t testing.TB) *table.Table {
	t.Helper()
	return Table(t,
		Ints("user_id", 1, 1, 2, 1, 2),
		Ints("prop_id", 10, 10, 10, 11, 10),
		Dates("contact_date", "2014-03-02", "2014-01-15", "2014-02-01", "2014-05-20", "2014-02-01"),
	)
}

// Rows returns every row of tbl as strings, for compact assertions.
func Rows(tbl *table.Table) [][]string {
	out := make([][]string, tbl.NumRows())
	for r := range out {
		row := tbl.Row(r)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		out[r] = cells
	}
	return out
}
