package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/query"
	"github.com/rzpsarthak13/docsql/internal/schema"
	"github.com/rzpsarthak13/docsql/internal/table"
)

// Observer receives the outcome of every executed statement.
type Observer interface {
	ObserveStatement(kind string, err error, duration time.Duration, rows int)
}

// Engine executes SQL text against a document store. It holds no per-call
// state; one Engine serves concurrent callers across scopes.
type Engine struct {
	store   core.DocumentStore
	catalog *schema.Catalog
	parser  *query.Parser

	feed            core.ChangeFeed
	observer        Observer
	now             func() time.Time
	permissiveJoins bool
	dialectFallback bool
	maxStatements   int
	timeout         time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithChangeFeed publishes a change event for every row write and schema change.
func WithChangeFeed(feed core.ChangeFeed) Option {
	return func(e *Engine) { e.feed = feed }
}

// WithObserver reports statement outcomes, typically to metrics.
func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}

// WithClock replaces the statement clock used by NOW() and timestamp defaults.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPermissiveJoins makes RIGHT and NATURAL joins pass the left rows through
// and record the fallback in the trace instead of failing.
func WithPermissiveJoins(enabled bool) Option {
	return func(e *Engine) { e.permissiveJoins = enabled }
}

// WithDialectFallback retries statements that fail to parse with ANSI quoting
// and casts rewritten to the MySQL forms.
func WithDialectFallback(enabled bool) Option {
	return func(e *Engine) { e.dialectFallback = enabled }
}

// WithMaxStatements caps the statements accepted by one Execute call. Zero disables the cap.
func WithMaxStatements(n int) Option {
	return func(e *Engine) { e.maxStatements = n }
}

// WithStatementTimeout bounds each statement. Zero disables the timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates an engine over store. Dialect fallback is on unless disabled.
func New(store core.DocumentStore, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		catalog:         schema.NewCatalog(store),
		now:             time.Now,
		dialectFallback: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.catalog.SetClock(e.now)
	e.parser = query.NewParser(e.dialectFallback)
	return e
}

// Catalog returns the metadata catalog the engine resolves tables through.
func (e *Engine) Catalog() *schema.Catalog {
	return e.catalog
}

// execution carries the state of one statement.
type execution struct {
	ctx    context.Context
	scope  core.Scope
	now    time.Time
	result *core.Result
	eval   *query.Evaluator
}

func (x *execution) warn(msg string) {
	x.result.Tracef("warning: %s", msg)
}

// Execute runs every statement of sqlText in order under scope and returns the
// result of the last one. Statements that completed before a failure keep their
// effects. A failing statement is reported as a *core.StatementError.
func (e *Engine) Execute(ctx context.Context, scope core.Scope, sqlText string) (*core.Result, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	statements := query.Split(sqlText)
	if len(statements) == 0 {
		return nil, fmt.Errorf("%w: no statement to execute", core.ErrSyntax)
	}
	if e.maxStatements > 0 && len(statements) > e.maxStatements {
		return nil, fmt.Errorf("%w: %d statements, limit is %d", core.ErrTooManyStatements, len(statements), e.maxStatements)
	}

	var last *core.Result
	for i, sql := range statements {
		if err := ctx.Err(); err != nil {
			return nil, &core.StatementError{Index: i, SQL: sql, Err: err}
		}

		result, err := e.executeStatement(ctx, scope, sql)
		if err != nil {
			log.Printf("[ENGINE] Statement %d failed in %s: %v", i+1, scope, err)
			return nil, &core.StatementError{Index: i, SQL: sql, Err: err}
		}
		last = result
	}
	return last, nil
}

func (e *Engine) executeStatement(ctx context.Context, scope core.Scope, sql string) (result *core.Result, err error) {
	start := time.Now()
	kind := "UNKNOWN"
	defer func() {
		if e.observer != nil {
			rows := 0
			if result != nil {
				rows = len(result.Rows)
			}
			e.observer.ObserveStatement(kind, err, time.Since(start), rows)
		}
	}()

	stmt, err := e.parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	kind = string(stmt.Kind())

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	now := e.now()
	x := &execution{
		ctx:    ctx,
		scope:  scope,
		now:    now,
		result: &core.Result{Rows: []*core.Row{}, Columns: []string{}},
	}
	x.eval = query.NewEvaluator(x.result, func() time.Time { return now })

	log.Printf("[ENGINE] Executing %s in %s", kind, scope)

	switch s := stmt.(type) {
	case *query.SelectStmt:
		err = e.execSelect(x, s)
	case *query.InsertStmt:
		err = e.execInsert(x, s)
	case *query.UpdateStmt:
		err = e.execUpdate(x, s)
	case *query.DeleteStmt:
		err = e.execDelete(x, s)
	case *query.CreateTableStmt:
		err = e.execCreate(x, s)
	case *query.DropTableStmt:
		err = e.execDrop(x, s)
	case *query.AlterTableStmt:
		err = e.execAlter(x, s)
	default:
		err = fmt.Errorf("%w: %s", core.ErrUnsupportedStatement, stmt.Kind())
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && e.timeout > 0 {
			err = fmt.Errorf("statement exceeded %v: %w", e.timeout, err)
		}
		return nil, err
	}
	return x.result, nil
}

// open resolves a table and wires the change feed into its handle.
func (e *Engine) open(x *execution, name string) (*table.Handle, error) {
	return table.Open(x.ctx, e.catalog, e.store, x.scope, name, e.handleOptions(x)...)
}

func (e *Engine) handleOptions(x *execution) []table.Option {
	opts := []table.Option{
		table.WithClock(func() time.Time { return x.now }),
		table.WithWarnings(x.warn),
	}
	if e.feed != nil {
		opts = append(opts, table.WithChangeFeed(e.feed))
	}
	return opts
}
