package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/changefeed"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

type yamlProvider string

func (p yamlProvider) GetYAML() ([]byte, error) { return []byte(p), nil }

var scope = core.Scope{Tenant: "acme", Project: "shop"}

func newTestClient(t *testing.T, config string) *ClientImpl {
	t.Helper()
	c, err := NewClientImpl(yamlProvider(config))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClientImplRejectsBadConfig(t *testing.T) {
	_, err := NewClientImpl(nil)
	assert.Error(t, err)

	_, err = NewClientImpl(yamlProvider("store:\n  type: cassandra\n"))
	assert.Error(t, err)
}

func TestClientExecuteAndDescribe(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "store:\n  type: memory\n")

	_, err := c.Execute(ctx, scope, `
		CREATE TABLE users (id INT NOT NULL PRIMARY KEY, email VARCHAR(100) UNIQUE);
		CREATE TABLE orders (id INT, user_id INT, FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE);
	`)
	require.NoError(t, err)

	tables, err := c.ListTables(ctx, scope)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, "users", tables[1].Name)

	users, err := c.DescribeTable(ctx, scope, "USERS")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, core.ColumnNames(users.Columns))
	assert.True(t, users.Columns[0].PrimaryKey)

	orders, err := c.DescribeTable(ctx, scope, "orders")
	require.NoError(t, err)
	require.Len(t, orders.Constraints, 1)
	assert.Equal(t, core.ConstraintForeignKey, orders.Constraints[0].Type)
	assert.Equal(t, "users", orders.Constraints[0].RefTable)
	assert.Equal(t, "CASCADE", orders.Constraints[0].OnDelete)

	_, err = c.DescribeTable(ctx, scope, "missing")
	assert.True(t, errors.Is(err, core.ErrTableNotFound))

	_, err = c.ListTables(ctx, core.Scope{Tenant: "acme"})
	assert.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestClientWiresChangeFeed(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "changefeed:\n  enabled: true\n  queue_type: memory\n")
	require.IsType(t, &changefeed.MemoryQueue{}, c.Feed())

	_, err := c.Execute(ctx, scope, "CREATE TABLE t (a INT); INSERT INTO t (a) VALUES (1)")
	require.NoError(t, err)

	events, err := c.Feed().Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.OperationCreateTable, events[0].Operation)
	assert.Equal(t, core.OperationInsert, events[1].Operation)
	assert.Equal(t, map[string]interface{}{"a": int64(1)}, events[1].Data)
}

func TestClientEngineSettings(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "engine:\n  max_statements: 1\n")

	_, err := c.Execute(ctx, scope, "SELECT 1; SELECT 2")
	assert.True(t, errors.Is(err, core.ErrTooManyStatements))
	assert.Equal(t, 1, c.Config().Engine.MaxStatements)
}

func TestClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "")

	var calls []string
	require.NoError(t, c.RegisterHook(ctx, registry.LifecycleHookFunc{
		OnStartFunc: func(context.Context) error { calls = append(calls, "start"); return nil },
		OnStopFunc:  func(context.Context) error { calls = append(calls, "stop"); return nil },
	}))

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, []string{"start", "stop"}, calls)
	assert.False(t, c.IsRunning())

	_, err := c.Execute(ctx, scope, "SELECT 1")
	assert.True(t, errors.Is(err, ErrClientClosed))
}
