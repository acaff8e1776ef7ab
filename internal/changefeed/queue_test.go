package changefeed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/docstore"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

func event(table string, op core.OperationType, id string) *core.ChangeEvent {
	return &core.ChangeEvent{
		Tenant:     "acme",
		Project:    "shop",
		Table:      table,
		TableID:    table + "-id",
		Operation:  op,
		DocumentID: id,
		Data:       map[string]interface{}{"n": int64(1)},
		Timestamp:  time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestMemoryQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(2)

	require.NoError(t, q.Publish(ctx, event("users", core.OperationInsert, "1")))
	require.NoError(t, q.Publish(ctx, event("users", core.OperationUpdate, "1")))
	assert.True(t, errors.Is(q.Publish(ctx, event("users", core.OperationDelete, "1")), ErrQueueFull))
	assert.Equal(t, 2, q.Size())

	events, err := q.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.OperationInsert, events[0].Operation)
	assert.Equal(t, core.OperationUpdate, events[1].Operation)

	events, err = q.Poll(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.True(t, errors.Is(q.Publish(ctx, event("users", core.OperationInsert, "2")), core.ErrStoreClosed))
}

func TestMemoryQueueRejectsInvalidEvents(t *testing.T) {
	q := NewMemoryQueue(0)
	assert.True(t, errors.Is(q.Publish(context.Background(), nil), ErrInvalidEvent))
	assert.True(t, errors.Is(q.Publish(context.Background(), &core.ChangeEvent{Operation: core.OperationInsert}), ErrInvalidEvent))
}

func newRedisStore(t *testing.T) *docstore.RedisStore {
	t.Helper()
	store, _ := newRedisStoreWithServer(t)
	return store
}

func newRedisStoreWithServer(t *testing.T) (*docstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := docstore.NewRedisStore([]string{mr.Addr()}, "", 0, 5, 0, 1, "test", time.Second, time.Second, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisQueue(t *testing.T) {
	ctx := context.Background()
	q, err := NewRedisQueue(newRedisStore(t), "changes")
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, event("users", core.OperationInsert, "1")))
	require.NoError(t, q.Publish(ctx, event("orders", core.OperationInsert, "9")))
	require.NoError(t, q.Publish(ctx, event("users", core.OperationDelete, "1")))
	assert.Equal(t, 3, q.Size())

	events, err := q.Poll(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "users", events[0].Table)
	assert.Equal(t, "orders", events[1].Table)
	assert.Equal(t, "9", events[1].DocumentID)
	assert.True(t, events[0].Timestamp.Equal(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, 1, q.Size())

	require.NoError(t, q.Close())
	_, err = q.Poll(ctx, 1)
	assert.True(t, errors.Is(err, core.ErrStoreClosed))
}

func TestRedisQueueDrainLeavesNoKeys(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStoreWithServer(t)
	q, err := NewRedisQueue(store, "changes")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(ctx, event("users", core.OperationInsert, fmt.Sprint(i))))
		require.NoError(t, q.Publish(ctx, event("orders", core.OperationUpdate, fmt.Sprint(i))))
	}
	assert.Equal(t, []string{"changes:global"}, mr.Keys())

	events, err := q.Poll(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 10)
	assert.Empty(t, mr.Keys())
	assert.Equal(t, 0, q.Size())
}

func TestRedisQueueRequiresListStore(t *testing.T) {
	_, err := NewRedisQueue(docstore.NewMemoryStore(), "")
	assert.True(t, errors.Is(err, ErrListOperationsNotSupported))
}

func TestNew(t *testing.T) {
	feed, err := New(registry.InternalChangeFeedConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, feed)

	feed, err = New(registry.InternalChangeFeedConfig{Enabled: true, QueueType: "memory", QueueBufferSize: 4}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, feed)

	feed, err = New(registry.InternalChangeFeedConfig{Enabled: true, QueueType: "redis", RedisKey: "k"}, newRedisStore(t))
	require.NoError(t, err)
	assert.IsType(t, &RedisQueue{}, feed)

	_, err = New(registry.InternalChangeFeedConfig{Enabled: true, QueueType: "redis"}, docstore.NewMemoryStore())
	assert.Error(t, err)

	_, err = New(registry.InternalChangeFeedConfig{Enabled: true, QueueType: "kafka"}, nil)
	assert.Error(t, err)

	_, err = New(registry.InternalChangeFeedConfig{Enabled: true, QueueType: "sqs"}, nil)
	assert.Error(t, err)
}
