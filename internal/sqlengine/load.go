package sqlengine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ng-nicholas/tabbench/internal/sqlgen"
	"github.com/ng-nicholas/tabbench/internal/table"
)

var columnTypes = map[table.Type]string{
	table.TypeInt:    "INTEGER",
	table.TypeFloat:  "REAL",
	table.TypeString: "TEXT",
	table.TypeDate:   "TEXT",
}

// source returns the SQL table holding t, loading it on first use.
func (e *Engine) source(ctx context.Context, t *table.Table) (sqlgen.Source, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if src, ok := e.tables[t]; ok {
		return src, nil
	}
	src := sqlgen.Source{Name: fmt.Sprintf("t%d", len(e.tables)+1), Fields: t.Schema()}
	start := time.Now()
	if err := e.load(ctx, src, t); err != nil {
		return sqlgen.Source{}, fmt.Errorf("%s: load table: %w", e.driver, err)
	}
	e.tables[t] = src
	e.logger.Debug("table loaded", "driver", e.driver, "table", src.Name, "rows", t.NumRows(), "elapsed", time.Since(start))
	return src, nil
}

func (e *Engine) load(ctx context.Context, src sqlgen.Source, t *table.Table) error {
	defs := make([]string, len(src.Fields))
	marks := make([]string, len(src.Fields))
	for i, f := range src.Fields {
		defs[i] = sqlgen.Quote(f.Name) + " " + columnTypes[f.Type]
		marks[i] = "?"
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", src.Name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", src.Name, strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := range args {
			args[c] = sqlgen.Arg(t.ColumnAt(c).Value(r))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", r, err)
		}
	}
	return tx.Commit()
}

// fromSQL converts a scanned cell to a value of typ. SQLite may hand back
// a different storage class than the column's, e.g. an integer from SUM
// over a REAL column that holds whole numbers.
func fromSQL(raw any, typ table.Type) (table.Value, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	if raw == nil {
		return table.Null{}, nil
	}

	switch typ {
	case table.TypeInt:
		switch x := raw.(type) {
		case int64:
			return table.Int(x), nil
		case float64:
			if x == math.Trunc(x) {
				return table.Int(int64(x)), nil
			}
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return table.Int(n), nil
			}
		}
	case table.TypeFloat:
		switch x := raw.(type) {
		case int64:
			return table.Float(float64(x)), nil
		case float64:
			return table.Float(x), nil
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return table.Float(f), nil
			}
		}
	case table.TypeString:
		switch x := raw.(type) {
		case string:
			return table.Str(x), nil
		case int64:
			return table.Str(strconv.FormatInt(x, 10)), nil
		case float64:
			return table.Str(strconv.FormatFloat(x, 'g', -1, 64)), nil
		}
	case table.TypeDate:
		switch x := raw.(type) {
		case string:
			d, err := table.ParseDate(x)
			if err != nil {
				return nil, err
			}
			return d, nil
		case time.Time:
			return table.DateOf(x), nil
		}
	}
	return nil, fmt.Errorf("cannot read %T %v as %s", raw, raw, typ)
}
