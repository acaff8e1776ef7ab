package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
)

func joinFixture() (users, orders []*core.Row) {
	users = []*core.Row{
		testRow("u1", "u", "id", int64(1), "name", "ann"),
		testRow("u2", "u", "id", int64(2), "name", "bob"),
		testRow("u3", "u", "id", int64(3), "name", "cid"),
	}
	orders = []*core.Row{
		testRow("o1", "o", "id", int64(10), "user_id", int64(1), "total", int64(50)),
		testRow("o2", "o", "id", int64(11), "user_id", "1", "total", int64(25)),
		testRow("o3", "o", "id", int64(12), "user_id", int64(2), "total", int64(5)),
	}
	return users, orders
}

func runJoin(t *testing.T, sql string, permissive bool, left, right []*core.Row, columns ...string) ([]*core.Row, *core.Result, error) {
	t.Helper()
	stmt := mustSelect(t, sql)
	require.Len(t, stmt.Joins, 1)

	trace := &core.Result{}
	joiner := NewJoiner(NewEvaluator(trace, fixedClock), permissive)
	out, err := joiner.Join(left, JoinInput{Clause: stmt.Joins[0], Rows: right, Columns: columns})
	return out, trace, err
}

func TestJoinInner(t *testing.T) {
	users, orders := joinFixture()

	out, _, err := runJoin(t, "SELECT * FROM users u JOIN orders o ON u.id = o.user_id", false, users, orders)
	require.NoError(t, err)
	require.Len(t, out, 3)

	ev := NewEvaluator(nil, fixedClock)
	var pairs [][2]interface{}
	for _, row := range out {
		name, err := ev.Eval(&ColumnRef{Qualifier: "u", Name: "name"}, row)
		require.NoError(t, err)
		total, err := ev.Eval(&ColumnRef{Qualifier: "o", Name: "total"}, row)
		require.NoError(t, err)
		pairs = append(pairs, [2]interface{}{name, total})
	}
	assert.Equal(t, [][2]interface{}{{"ann", int64(50)}, {"ann", int64(25)}, {"bob", int64(5)}}, pairs)

	// Shared names keep the left value; the right one stays reachable by qualifier.
	id, _ := out[0].Get("id")
	assert.Equal(t, int64(1), id)
	orderID, err := ev.Eval(&ColumnRef{Qualifier: "o", Name: "id"}, out[0])
	require.NoError(t, err)
	assert.Equal(t, int64(10), orderID)
}

func TestJoinLeftPadsUnmatchedRows(t *testing.T) {
	users, orders := joinFixture()

	out, _, err := runJoin(t, "SELECT * FROM users u LEFT JOIN orders o ON u.id = o.user_id", false, users, orders, "id", "user_id", "total", "note")
	require.NoError(t, err)
	require.Len(t, out, 4)

	last := out[3]
	name, _ := last.Get("name")
	assert.Equal(t, "cid", name)
	for _, col := range []string{"user_id", "total", "note"} {
		v, ok := last.Get(col)
		assert.True(t, ok, col)
		assert.Nil(t, v, col)
	}
}

func TestJoinLeftWithoutRightRows(t *testing.T) {
	users, _ := joinFixture()

	out, _, err := runJoin(t, "SELECT * FROM users u LEFT JOIN orders o ON u.id = o.user_id", false, users, nil, "user_id", "total")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"id", "name", "user_id", "total"}, out[0].Keys())
}

func TestJoinCross(t *testing.T) {
	users, orders := joinFixture()

	out, _, err := runJoin(t, "SELECT * FROM users u CROSS JOIN orders o", false, users, orders)
	require.NoError(t, err)
	assert.Len(t, out, 9)

	out, _, err = runJoin(t, "SELECT * FROM users u, orders o", false, users, orders)
	require.NoError(t, err)
	assert.Len(t, out, 9)
}

func TestJoinUsing(t *testing.T) {
	left := []*core.Row{
		testRow("a1", "a", "k", int64(1), "x", "one"),
		testRow("a2", "a", "k", nil, "x", "none"),
	}
	right := []*core.Row{
		testRow("b1", "b", "k", "1", "y", "uno"),
		testRow("b2", "b", "k", nil, "y", "nada"),
	}

	out, _, err := runJoin(t, "SELECT * FROM a JOIN b USING (k)", false, left, right)
	require.NoError(t, err)
	require.Len(t, out, 1)
	y, _ := out[0].Get("y")
	assert.Equal(t, "uno", y)
}

func TestJoinUnsupportedKinds(t *testing.T) {
	users, orders := joinFixture()

	_, _, err := runJoin(t, "SELECT * FROM users u RIGHT JOIN orders o ON u.id = o.user_id", false, users, orders)
	assert.True(t, errors.Is(err, core.ErrUnsupportedJoinKind), "got %v", err)

	out, trace, err := runJoin(t, "SELECT * FROM users u RIGHT JOIN orders o ON u.id = o.user_id", true, users, orders)
	require.NoError(t, err)
	assert.Equal(t, users, out)
	require.Len(t, trace.Trace, 1)
	assert.Equal(t, "join fallback: RIGHT JOIN orders not supported, 3 left rows passed through", trace.Trace[0])

	_, _, err = runJoin(t, "SELECT * FROM users u NATURAL JOIN orders o", false, users, orders)
	assert.True(t, errors.Is(err, core.ErrUnsupportedJoinKind), "got %v", err)
}
