package sqlengine

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/frame"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
	tu "github.com/ng-nicholas/tabbench/internal/testutil"
)

func openEngine(t *testing.T, driver string) *Engine {
	t.Helper()
	e, err := Open(context.Background(), driver)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func sortedRows(tbl *table.Table) []string {
	rows := tu.Rows(tbl)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = strings.Join(r, "|")
	}
	sort.Strings(out)
	return out
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres")
	require.Error(t, err)
	assert.True(t, bencherr.IsInvalidConfig(err))
}

func TestDedupe_ThreeOfFive(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			e := openEngine(t, driver)
			assert.Equal(t, driver, e.Name())

			out, err := e.Execute(context.Background(),
				queryir.Dedupe{Keys: []string{"user_id", "prop_id"}, OrderBy: "contact_date"},
				[]*table.Table{tu.Contacts(t)})
			require.NoError(t, err)
			assert.Equal(t, []table.Field{
				{Name: "user_id", Type: table.TypeInt},
				{Name: "prop_id", Type: table.TypeInt},
				{Name: "contact_date", Type: table.TypeDate},
			}, out.Schema())
			assert.Equal(t, []string{
				"1|10|2014-01-15",
				"1|11|2014-05-20",
				"2|10|2014-02-01",
			}, sortedRows(out))
		})
	}
}

// Every operation must produce the same rows as the in-memory back end.
func TestMatchesFrame(t *testing.T) {
	contacts := tu.Table(t,
		tu.Values("user_id", table.TypeInt, table.Int(1), table.Int(1), table.Int(2), table.Int(3), table.Null{}),
		tu.Values("prop_id", table.TypeInt, table.Int(10), table.Int(11), table.Int(10), table.Null{}, table.Int(12)),
		tu.Dates("contact_date", "2014-01-03", "2014-01-01", "2014-02-01", "2014-01-05", "2014-01-04"),
		tu.Values("price", table.TypeFloat, table.Float(1.5), table.Float(2.25), table.Null{}, table.Float(4), table.Float(8)),
		tu.Strs("channel", "web", "email", "web", "phone", "email"),
	)
	props := tu.Table(t,
		tu.Ints("prop_id", 10, 11, 11),
		tu.Strs("city", "Leeds", "York", "Hull"),
		tu.Floats("price", 100, 200, 300),
	)
	more := tu.Table(t,
		tu.Strs("city", "Bath"),
		tu.Floats("price", 50),
		tu.Ints("prop_id", 13),
	)

	tests := []struct {
		name   string
		query  queryir.Query
		inputs []*table.Table
	}{
		{"dedupe", queryir.Dedupe{Keys: []string{"channel"}, OrderBy: "contact_date"}, []*table.Table{contacts}},
		{"mutate add", queryir.Mutate{Target: "total", Op: queryir.OpAdd, Left: "price", Right: "user_id"}, []*table.Table{contacts}},
		{"mutate div", queryir.Mutate{Target: "ratio", Op: queryir.OpDiv, Left: "prop_id", Right: "user_id"}, []*table.Table{contacts}},
		{"mutate literal", queryir.Mutate{Target: "user_id", Op: queryir.OpMul, Left: "user_id", Literal: table.Int(3)}, []*table.Table{contacts}},
		{"group aggregate", queryir.GroupAggregate{Keys: []string{"channel"}, Aggregates: []queryir.Aggregate{
			{Func: queryir.AggSum, Column: "user_id", As: "sum_user"},
			{Func: queryir.AggSum, Column: "price", As: "sum_price"},
			{Func: queryir.AggMean, Column: "price", As: "mean_price"},
			{Func: queryir.AggMin, Column: "contact_date", As: "first"},
			{Func: queryir.AggMax, Column: "channel", As: "max_channel"},
			{Func: queryir.AggCount, Column: "price", As: "priced"},
			{Func: queryir.AggCount, As: "n"},
		}}, []*table.Table{contacts}},
		{"melt", queryir.Melt{IDColumns: []string{"channel"}, MeasureColumns: []string{"user_id", "price"}, VariableName: "variable", ValueName: "value"}, []*table.Table{contacts}},
		{"cast", queryir.Cast{IDColumns: []string{"user_id"}, VariableColumn: "channel", ValueColumn: "price"}, []*table.Table{contacts}},
		{"inner join", queryir.Join{On: []string{"prop_id"}, How: queryir.JoinInner}, []*table.Table{contacts, props}},
		{"left join", queryir.Join{On: []string{"prop_id"}, How: queryir.JoinLeft}, []*table.Table{contacts, props}},
		{"self join", queryir.Join{On: []string{"prop_id"}, How: queryir.JoinInner}, []*table.Table{props, props}},
		{"append", queryir.Append{}, []*table.Table{props, more}},
	}

	for _, driver := range Drivers {
		e := openEngine(t, driver)
		require.NoError(t, e.Preload(context.Background(), contacts, props, more))

		for _, tt := range tests {
			t.Run(driver+"/"+tt.name, func(t *testing.T) {
				want, err := frame.Execute(context.Background(), tt.query, tt.inputs)
				require.NoError(t, err)
				got, err := e.Execute(context.Background(), tt.query, tt.inputs)
				require.NoError(t, err)

				assert.Equal(t, want.Schema(), got.Schema())
				assert.Equal(t, sortedRows(want), sortedRows(got))
			})
		}
	}
}

func TestExecute_LoadsOnce(t *testing.T) {
	e := openEngine(t, DriverPure)
	contacts := tu.Contacts(t)
	q := queryir.GroupAggregate{Keys: []string{"user_id"}, Aggregates: []queryir.Aggregate{{Func: queryir.AggCount, As: "n"}}}

	for i := 0; i < 3; i++ {
		_, err := e.Execute(context.Background(), q, []*table.Table{contacts})
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, e.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPrepare_LogsOnceOutsideExecute(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			e, err := Open(context.Background(), driver, WithLogger(logger))
			require.NoError(t, err)
			t.Cleanup(func() { e.Close() })

			inputs := []*table.Table{tu.Contacts(t)}
			q := queryir.Dedupe{Keys: []string{"user_id", "prop_id"}, OrderBy: "contact_date"}
			require.NoError(t, e.Prepare(context.Background(), q, inputs))
			assert.Contains(t, buf.String(), "sql plan")
			assert.Contains(t, buf.String(), "ROW_NUMBER()")

			buf.Reset()
			for i := 0; i < 3; i++ {
				_, err := e.Execute(context.Background(), q, inputs)
				require.NoError(t, err)
			}
			assert.Empty(t, buf.String())
		})
	}
}

func TestPrepare_InvalidQuery(t *testing.T) {
	e := openEngine(t, DriverPure)
	inputs := []*table.Table{tu.Contacts(t)}

	err := e.Prepare(context.Background(), queryir.Dedupe{Keys: []string{"nope"}, OrderBy: "contact_date"}, inputs)
	assert.True(t, bencherr.IsInvalidConfig(err))

	err = e.Prepare(context.Background(), queryir.Cast{IDColumns: []string{"user_id"}, VariableColumn: "prop_id", ValueColumn: "contact_date"}, nil)
	assert.True(t, bencherr.IsInvalidConfig(err))
}

func TestExecute_EmptyResult(t *testing.T) {
	e := openEngine(t, DriverCgo)
	left := tu.Table(t, tu.Ints("k", 1), tu.Strs("a", "x"))
	right := tu.Table(t, tu.Ints("k", 2), tu.Strs("b", "y"))

	out, err := e.Execute(context.Background(), queryir.Join{On: []string{"k"}, How: queryir.JoinInner}, []*table.Table{left, right})
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
	assert.Equal(t, []string{"k", "a", "b"}, out.Names())
}

func TestExecute_InvalidQuery(t *testing.T) {
	e := openEngine(t, DriverCgo)
	_, err := e.Execute(context.Background(), queryir.Cast{IDColumns: []string{"nope"}, VariableColumn: "prop_id", ValueColumn: "user_id"}, []*table.Table{tu.Contacts(t)})
	require.Error(t, err)
	assert.True(t, bencherr.IsInvalidConfig(err))
}

func TestFromSQL(t *testing.T) {
	d, err := table.ParseDate("2014-01-02")
	require.NoError(t, err)

	tests := []struct {
		raw  any
		typ  table.Type
		want table.Value
	}{
		{nil, table.TypeInt, table.Null{}},
		{int64(3), table.TypeInt, table.Int(3)},
		{float64(3), table.TypeInt, table.Int(3)},
		{int64(3), table.TypeFloat, table.Float(3)},
		{[]byte("abc"), table.TypeString, table.Str("abc")},
		{"2014-01-02", table.TypeDate, d},
		{int64(7), table.TypeString, table.Str("7")},
	}
	for _, tt := range tests {
		got, err := fromSQL(tt.raw, tt.typ)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err = fromSQL(float64(1.5), table.TypeInt)
	assert.Error(t, err)
	_, err = fromSQL("not a date", table.TypeDate)
	assert.Error(t, err)
}
