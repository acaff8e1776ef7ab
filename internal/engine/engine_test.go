package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/docstore"
	"github.com/rzpsarthak13/docsql/internal/engine"
)

var (
	scope = core.Scope{Tenant: "acme", Project: "shop"}
	clock = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
)

type recordingFeed struct {
	mu     sync.Mutex
	events []*core.ChangeEvent
}

func (f *recordingFeed) Publish(_ context.Context, event *core.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *recordingFeed) Poll(context.Context, int) ([]*core.ChangeEvent, error) { return nil, nil }
func (f *recordingFeed) Close() error                                          { return nil }

func (f *recordingFeed) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *recordingFeed) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.events))
	for i, e := range f.events {
		ops[i] = string(e.Operation) + " " + e.Table
	}
	return ops
}

// countingStore records every call that reaches storage.
type countingStore struct {
	core.DocumentStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *countingStore) ListDocuments(ctx context.Context, scope core.Scope, collection string) ([]core.Document, error) {
	s.count()
	return s.DocumentStore.ListDocuments(ctx, scope, collection)
}

func (s *countingStore) AddDocument(ctx context.Context, scope core.Scope, collection string, fields map[string]interface{}) (string, error) {
	s.count()
	return s.DocumentStore.AddDocument(ctx, scope, collection, fields)
}

type statement struct {
	kind string
	err  error
	rows int
}

type recordingObserver struct {
	mu         sync.Mutex
	statements []statement
}

func (o *recordingObserver) ObserveStatement(kind string, err error, _ time.Duration, rows int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statements = append(o.statements, statement{kind: kind, err: err, rows: rows})
}

func newEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	opts = append([]engine.Option{engine.WithClock(func() time.Time { return clock })}, opts...)
	return engine.New(store, opts...), store
}

func run(t *testing.T, e *engine.Engine, sql string) *core.Result {
	t.Helper()
	result, err := e.Execute(context.Background(), scope, sql)
	require.NoError(t, err, sql)
	return result
}

func values(rows []*core.Row, column string) []interface{} {
	out := make([]interface{}, len(rows))
	for i, row := range rows {
		out[i], _ = row.Get(column)
	}
	return out
}

func TestExecuteRequiresScope(t *testing.T) {
	store := &countingStore{DocumentStore: docstore.NewMemoryStore()}
	e := engine.New(store)

	for _, s := range []core.Scope{{}, {Tenant: "acme"}, {Project: "shop"}, {Tenant: " ", Project: "shop"}} {
		_, err := e.Execute(context.Background(), s, "SELECT * FROM users")
		assert.True(t, errors.Is(err, core.ErrUnauthorized), "%+v", s)
	}
	assert.Zero(t, store.calls)
}

func TestInsertCountsRows(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT, b VARCHAR(10))")

	var tuples []string
	for i := 0; i < 25; i++ {
		tuples = append(tuples, fmt.Sprintf("(%d, 'v%d')", i, i))
	}
	inserted := run(t, e, "INSERT INTO t (a, b) VALUES "+strings.Join(tuples, ", "))
	assert.Equal(t, 25, inserted.RowsAffected)
	assert.Equal(t, "25 rows inserted.", inserted.Message)

	count := run(t, e, "SELECT COUNT(*) FROM t")
	require.Len(t, count.Rows, 1)
	assert.Equal(t, []string{"count_all"}, count.Columns)
	assert.Equal(t, []interface{}{int64(25)}, values(count.Rows, "count_all"))
}

func TestInsertThenSelectRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT, b VARCHAR(10))")
	run(t, e, "INSERT INTO t (a, b) VALUES (1, 'x')")

	result := run(t, e, "SELECT * FROM t")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []string{"a", "b"}, result.Columns)
	assert.Equal(t, []string{"a", "b"}, result.Rows[0].Keys())
	assert.Equal(t, map[string]interface{}{"a": int64(1), "b": "x"}, result.Rows[0].Map())
	assert.NotEmpty(t, result.Rows[0].ID)
}

func TestOrderByLimitPutsNullsFirst(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT, b INT)")
	run(t, e, "INSERT INTO t (a, b) VALUES (1, 30), (2, NULL), (3, 10), (4, 20)")

	result := run(t, e, "SELECT a, b FROM t ORDER BY b LIMIT 3")
	assert.Equal(t, []interface{}{int64(2), int64(3), int64(4)}, values(result.Rows, "a"))
	assert.Equal(t, []interface{}{nil, int64(10), int64(20)}, values(result.Rows, "b"))

	result = run(t, e, "SELECT a FROM t ORDER BY b DESC LIMIT 2 OFFSET 1")
	assert.Equal(t, []interface{}{int64(1), int64(4)}, values(result.Rows, "a"))
}

func TestGroupBySum(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a VARCHAR(5), b INT)")
	run(t, e, "INSERT INTO t (a, b) VALUES ('x', 1), ('y', 5), ('x', 2), ('y', NULL)")

	result := run(t, e, "SELECT a, SUM(b) FROM t GROUP BY a")
	assert.Equal(t, []string{"a", "sum_b"}, result.Columns)
	assert.Equal(t, []interface{}{"x", "y"}, values(result.Rows, "a"))
	assert.Equal(t, []interface{}{int64(3), int64(5)}, values(result.Rows, "sum_b"))
	assert.Contains(t, result.Trace, "aggregate: 2 groups")
}

func TestCountDistinctSkipsNull(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (x INT)")
	run(t, e, "INSERT INTO t (x) VALUES (1), (1), (2), (NULL)")

	result := run(t, e, "SELECT COUNT(DISTINCT x) AS n FROM t")
	assert.Equal(t, []interface{}{int64(2)}, values(result.Rows, "n"))
}

func TestDropRemovesRows(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")
	run(t, e, "INSERT INTO t (a) VALUES (1), (2)")

	meta, err := e.Catalog().ResolveTable(ctx, scope, "t")
	require.NoError(t, err)

	dropped := run(t, e, "DROP TABLE t")
	assert.Equal(t, "Table t dropped.", dropped.Message)

	_, err = e.Execute(ctx, scope, "SELECT * FROM t")
	assert.True(t, errors.Is(err, core.ErrTableNotFound))

	docs, err := store.ListDocuments(ctx, scope, core.RowsCollection(meta.ID))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMultipleStatementsReturnLastResult(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")

	result := run(t, e, "INSERT INTO t (a) VALUES (7); SELECT a FROM t")
	assert.Equal(t, []interface{}{int64(7)}, values(result.Rows, "a"))

	result = run(t, e, "CREATE TABLE s (v VARCHAR(3)); INSERT INTO s VALUES ('a;b'); SELECT v FROM s;")
	assert.Equal(t, []interface{}{"a;b"}, values(result.Rows, "v"))
}

func TestFailedStatementKeepsEarlierWrites(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")

	_, err := e.Execute(ctx, scope, "INSERT INTO t (a) VALUES (1); INSERT INTO missing (a) VALUES (2); INSERT INTO t (a) VALUES (3)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTableNotFound))

	var stmtErr *core.StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, 1, stmtErr.Index)
	assert.Equal(t, "INSERT INTO missing (a) VALUES (2)", stmtErr.SQL)

	result := run(t, e, "SELECT a FROM t")
	assert.Equal(t, []interface{}{int64(1)}, values(result.Rows, "a"))
}

func TestSyntaxErrors(t *testing.T) {
	e, _ := newEngine(t)
	for _, sql := range []string{"SELEKT * FORM x", "", "  ;  ", "CREATE TABLE t (a INT"} {
		_, err := e.Execute(context.Background(), scope, sql)
		assert.True(t, errors.Is(err, core.ErrSyntax), "%q: %v", sql, err)
	}
}

func TestStatementLimits(t *testing.T) {
	e, _ := newEngine(t, engine.WithMaxStatements(2))
	_, err := e.Execute(context.Background(), scope, "SELECT 1; SELECT 2; SELECT 3")
	assert.True(t, errors.Is(err, core.ErrTooManyStatements))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Execute(ctx, scope, "SELECT 1")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSelectWithoutFrom(t *testing.T) {
	e, _ := newEngine(t)
	result := run(t, e, "SELECT 1 + 2 AS three, UPPER('ab') AS up")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, map[string]interface{}{"three": int64(3), "up": "AB"}, result.Rows[0].Map())
}

func TestUpdateAndDelete(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE c (id INT, n INT)")
	run(t, e, "INSERT INTO c (id, n) VALUES (1, 10), (2, 20), (3, 30)")

	updated := run(t, e, "UPDATE c SET n = n + 1 WHERE id <> 2")
	assert.Equal(t, 2, updated.RowsAffected)
	assert.Equal(t, "2 rows updated.", updated.Message)

	result := run(t, e, "SELECT n FROM c ORDER BY id")
	assert.Equal(t, []interface{}{int64(11), int64(20), int64(31)}, values(result.Rows, "n"))

	deleted := run(t, e, "DELETE FROM c WHERE n >= 20")
	assert.Equal(t, 2, deleted.RowsAffected)

	result = run(t, e, "SELECT id FROM c")
	assert.Equal(t, []interface{}{int64(1)}, values(result.Rows, "id"))

	deleted = run(t, e, "DELETE FROM c WHERE id = 99")
	assert.Equal(t, "0 rows deleted.", deleted.Message)
}

func TestUpdateWithLimit(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE c (id INT, flag INT)")
	run(t, e, "INSERT INTO c (id, flag) VALUES (1, 0), (2, 0), (3, 0)")

	run(t, e, "UPDATE c SET flag = 1 LIMIT 2")
	result := run(t, e, "SELECT flag FROM c")
	assert.Equal(t, []interface{}{int64(1), int64(1), int64(0)}, values(result.Rows, "flag"))
}

func TestInsertColumnCountMismatch(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT, b INT)")

	_, err := e.Execute(context.Background(), scope, "INSERT INTO t (a, b) VALUES (1, 2), (3)")
	assert.True(t, errors.Is(err, core.ErrColumnCount))

	result := run(t, e, "SELECT COUNT(*) AS n FROM t")
	assert.Equal(t, []interface{}{int64(0)}, values(result.Rows, "n"))
}

func TestInsertAppliesDefaults(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (id INT NOT NULL PRIMARY KEY, status VARCHAR(10) DEFAULT 'new', created TIMESTAMP DEFAULT CURRENT_TIMESTAMP)")

	run(t, e, "INSERT INTO t (id) VALUES (1)")
	run(t, e, "INSERT INTO t (id, status) VALUES (2, DEFAULT)")
	run(t, e, "INSERT INTO t (id, status) VALUES (3, 'done')")

	result := run(t, e, "SELECT id, status, created FROM t")
	assert.Equal(t, []interface{}{"new", "new", "done"}, values(result.Rows, "status"))
	assert.Equal(t, []interface{}{"2024-03-15T10:30:00Z", "2024-03-15T10:30:00Z", "2024-03-15T10:30:00Z"}, values(result.Rows, "created"))
}

func TestInsertKeepsUndeclaredColumns(t *testing.T) {
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")
	run(t, e, "INSERT INTO t (a, extra) VALUES (1, 'x')")

	result := run(t, e, "SELECT * FROM t")
	assert.Equal(t, []string{"a", "extra"}, result.Columns)
	assert.Equal(t, []interface{}{"x"}, values(result.Rows, "extra"))
}

func joinFixture(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, _ := newEngine(t, opts...)
	run(t, e, "CREATE TABLE users (id INT, name VARCHAR(20))")
	run(t, e, "CREATE TABLE orders (oid INT, user_id INT, total INT)")
	run(t, e, "INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob'), (3, 'cid')")
	run(t, e, "INSERT INTO orders (oid, user_id, total) VALUES (10, 1, 5), (11, 1, 7), (12, 2, 9)")
	return e
}

func TestJoins(t *testing.T) {
	e := joinFixture(t)

	inner := run(t, e, "SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id ORDER BY o.total DESC")
	assert.Equal(t, []string{"name", "total"}, inner.Columns)
	assert.Equal(t, []interface{}{"bob", "ann", "ann"}, values(inner.Rows, "name"))
	assert.Equal(t, []interface{}{int64(9), int64(7), int64(5)}, values(inner.Rows, "total"))

	left := run(t, e, "SELECT u.name, o.oid FROM users AS u LEFT JOIN orders AS o ON u.id = o.user_id")
	assert.Equal(t, []interface{}{"ann", "ann", "bob", "cid"}, values(left.Rows, "name"))
	assert.Equal(t, []interface{}{int64(10), int64(11), int64(12), nil}, values(left.Rows, "oid"))

	grouped := run(t, e, "SELECT u.name, COUNT(o.oid) AS orders FROM users u LEFT JOIN orders o ON u.id = o.user_id GROUP BY u.name")
	assert.Equal(t, []interface{}{int64(2), int64(1), int64(0)}, values(grouped.Rows, "orders"))
}

func TestRightJoinIsRejectedUnlessPermissive(t *testing.T) {
	sql := "SELECT * FROM users RIGHT JOIN orders ON users.id = orders.user_id"

	strict := joinFixture(t)
	_, err := strict.Execute(context.Background(), scope, sql)
	assert.True(t, errors.Is(err, core.ErrUnsupportedJoinKind))

	permissive := joinFixture(t, engine.WithPermissiveJoins(true))
	result := run(t, permissive, sql)
	assert.Len(t, result.Rows, 3)
	assert.Contains(t, result.Trace, "join fallback: RIGHT JOIN orders not supported, 3 left rows passed through")
}

func TestUnknownFunctionIsTraced(t *testing.T) {
	e, _ := newEngine(t)
	result := run(t, e, "SELECT FROBNICATE(1) AS f")
	assert.Equal(t, []interface{}{nil}, values(result.Rows, "f"))
	assert.Contains(t, result.Trace, "unknown function FROBNICATE evaluated to NULL")
}

func TestCreateAndDropGuards(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	created := run(t, e, "CREATE TABLE t (a INT)")
	assert.Equal(t, "Table t created.", created.Message)

	_, err := e.Execute(ctx, scope, "CREATE TABLE T (a INT)")
	assert.True(t, errors.Is(err, core.ErrTableExists))

	skipped := run(t, e, "CREATE TABLE IF NOT EXISTS t (a INT)")
	assert.Equal(t, "Table t already exists.", skipped.Message)

	_, err = e.Execute(ctx, scope, "DROP TABLE missing")
	assert.True(t, errors.Is(err, core.ErrTableNotFound))

	none := run(t, e, "DROP TABLE IF EXISTS missing")
	assert.Equal(t, "No tables dropped.", none.Message)
}

func TestCreateTableWarnsOnUnknownTypes(t *testing.T) {
	e, _ := newEngine(t)
	result := run(t, e, "CREATE TABLE t (shape GEOMETRY)")
	assert.Contains(t, result.Trace, `warning: column shape: unknown type "GEOMETRY" stored as TEXT`)
}

func TestAlterTable(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")
	run(t, e, "INSERT INTO t (a) VALUES (1)")

	altered := run(t, e, "ALTER TABLE t ADD COLUMN note VARCHAR(20) DEFAULT 'hi'")
	assert.Equal(t, "Table t altered.", altered.Message)

	run(t, e, "INSERT INTO t (a) VALUES (2)")
	result := run(t, e, "SELECT * FROM t")
	assert.Equal(t, []string{"a", "note"}, result.Columns)
	assert.Equal(t, []interface{}{nil, "hi"}, values(result.Rows, "note"))

	run(t, e, "ALTER TABLE t RENAME TO u")
	_, err := e.Execute(ctx, scope, "SELECT * FROM t")
	assert.True(t, errors.Is(err, core.ErrTableNotFound))
	assert.Len(t, run(t, e, "SELECT * FROM u").Rows, 2)
}

func TestScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	run(t, e, "CREATE TABLE t (a INT)")
	run(t, e, "INSERT INTO t (a) VALUES (1)")

	other := core.Scope{Tenant: "acme", Project: "blog"}
	_, err := e.Execute(ctx, other, "SELECT * FROM t")
	assert.True(t, errors.Is(err, core.ErrTableNotFound))

	_, err = e.Execute(ctx, other, "CREATE TABLE t (a INT)")
	require.NoError(t, err)
	result, err := e.Execute(ctx, other, "SELECT COUNT(*) AS n FROM t")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(0)}, values(result.Rows, "n"))
}

func TestChangeFeedAndObserver(t *testing.T) {
	feed := &recordingFeed{}
	observer := &recordingObserver{}
	e, _ := newEngine(t, engine.WithChangeFeed(feed), engine.WithObserver(observer))

	run(t, e, "CREATE TABLE t (a INT)")
	run(t, e, "INSERT INTO t (a) VALUES (1), (2)")
	run(t, e, "UPDATE t SET a = 3 WHERE a = 1")
	run(t, e, "DELETE FROM t WHERE a = 2")
	run(t, e, "SELECT * FROM t")
	run(t, e, "DROP TABLE t")
	_, err := e.Execute(context.Background(), scope, "SELECT * FROM t")
	require.Error(t, err)

	assert.Equal(t, []string{
		"CREATE_TABLE t",
		"INSERT t",
		"INSERT t",
		"UPDATE t",
		"DELETE t",
		"DROP_TABLE t",
	}, feed.operations())
	for _, event := range feed.events {
		assert.Equal(t, "acme", event.Tenant)
		assert.True(t, event.Timestamp.Equal(clock))
	}

	require.Len(t, observer.statements, 7)
	assert.Equal(t, "CREATE", observer.statements[0].kind)
	assert.Equal(t, statement{kind: "SELECT", rows: 1}, observer.statements[4])
	assert.Equal(t, "SELECT", observer.statements[6].kind)
	assert.True(t, errors.Is(observer.statements[6].err, core.ErrTableNotFound))
}
