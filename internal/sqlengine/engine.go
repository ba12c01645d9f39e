package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/sqlgen"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Driver names, as registered with database/sql.
const (
	DriverCgo  = "sqlite3"
	DriverPure = "sqlite"
)

// Drivers lists the supported drivers.
var Drivers = []string{DriverCgo, DriverPure}

// IsDriver reports whether name is a supported driver.
func IsDriver(name string) bool {
	return name == DriverCgo || name == DriverPure
}

// Engine is a SQL back end over one embedded database.
type Engine struct {
	driver   string
	db       *sql.DB
	compiler *sqlgen.Compiler
	logger   *slog.Logger

	mu     sync.Mutex
	tables map[*table.Table]sqlgen.Source
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	dsn    string
	logger *slog.Logger
}

// WithDSN opens the database at dsn instead of a private in-memory one.
func WithDSN(dsn string) Option {
	return func(c *config) { c.dsn = dsn }
}

// WithLogger sets the logger for load and query events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Open creates an engine on driver. The connection is verified and the
// pragmas applied before Open returns.
func Open(ctx context.Context, driver string, opts ...Option) (*Engine, error) {
	if !IsDriver(driver) {
		return nil, bencherr.NewInvalidConfig("backends", "unknown SQL driver %q (want one of %v)", driver, Drivers)
	}
	cfg := config{
		dsn:    ":memory:",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open(driver, cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database is private to its connection, so the pool must
	// never open a second one or let the first go idle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Engine{
		driver:   driver,
		db:       db,
		compiler: sqlgen.NewCompiler(),
		logger:   cfg.logger,
		tables:   make(map[*table.Table]sqlgen.Source),
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Name implements ops.Backend. It is the driver name.
func (e *Engine) Name() string { return e.driver }

// DB returns the underlying database for direct queries.
func (e *Engine) DB() *sql.DB { return e.db }

// Close closes the database. Loaded tables are lost.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Preload copies tables into the database ahead of timing.
func (e *Engine) Preload(ctx context.Context, tables ...*table.Table) error {
	for _, t := range tables {
		if _, err := e.source(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Execute implements ops.Backend. Inputs that were not preloaded are
// loaded first.
func (e *Engine) Execute(ctx context.Context, q queryir.Query, inputs []*table.Table) (*table.Table, error) {
	sources := make([]sqlgen.Source, len(inputs))
	for i, t := range inputs {
		src, err := e.source(ctx, t)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	if cast, ok := q.(queryir.Cast); ok {
		return e.executeCast(ctx, cast, sources)
	}
	stmt, err := e.compiler.Compile(q, sources)
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, stmt)
}

// Prepare compiles q and logs the SQL it will run. It is called once per
// step, outside timing. For cast only the pivot-discovery query is known
// ahead of execution.
func (e *Engine) Prepare(ctx context.Context, q queryir.Query, inputs []*table.Table) error {
	sources := make([]sqlgen.Source, len(inputs))
	for i, t := range inputs {
		src, err := e.source(ctx, t)
		if err != nil {
			return err
		}
		sources[i] = src
	}

	var (
		stmt *sqlgen.Statement
		err  error
	)
	if cast, ok := q.(queryir.Cast); ok {
		if len(sources) != cast.Arity() {
			return bencherr.NewInvalidConfig("inputs", "%s takes %d input table(s), got %d", cast.Kind(), cast.Arity(), len(sources))
		}
		stmt, err = e.compiler.CastVariables(cast, sources[0])
	} else {
		stmt, err = e.compiler.Compile(q, sources)
	}
	if err != nil {
		return err
	}
	e.logger.Debug("sql plan", "driver", e.driver, "kind", q.Kind(), "sql", stmt.SQL, "args", len(stmt.Args))
	return nil
}

func (e *Engine) executeCast(ctx context.Context, q queryir.Cast, sources []sqlgen.Source) (*table.Table, error) {
	if len(sources) != q.Arity() {
		return nil, bencherr.NewInvalidConfig("inputs", "%s takes %d input table(s), got %d", q.Kind(), q.Arity(), len(sources))
	}
	stmt, err := e.compiler.CastVariables(q, sources[0])
	if err != nil {
		return nil, err
	}
	vars, err := e.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	stmt, err = e.compiler.CompileCast(q, sources[0], vars.ColumnAt(0).Values())
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, stmt)
}

// Query runs a compiled statement and reads its rows into a table with the
// statement's schema.
func (e *Engine) Query(ctx context.Context, stmt *sqlgen.Statement) (*table.Table, error) {
	rows, err := e.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", e.driver, err)
	}
	defer rows.Close()

	n := len(stmt.Fields)
	values := make([][]table.Value, n)
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", e.driver, err)
		}
		for i, f := range stmt.Fields {
			v, err := fromSQL(raw[i], f.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: column %q: %w", e.driver, f.Name, err)
			}
			values[i] = append(values[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: read rows: %w", e.driver, err)
	}

	cols := make([]*table.Column, n)
	for i, f := range stmt.Fields {
		if values[i] == nil {
			values[i] = []table.Value{}
		}
		cols[i] = table.NewColumn(f.Name, f.Type, values[i])
	}
	return table.New(cols...)
}
