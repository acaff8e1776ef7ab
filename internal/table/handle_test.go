package table_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/docstore"
	"github.com/rzpsarthak13/docsql/internal/schema"
	"github.com/rzpsarthak13/docsql/internal/table"
)

var scope = core.Scope{Tenant: "acme", Project: "shop"}

type recordingFeed struct {
	mu     sync.Mutex
	events []*core.ChangeEvent
	err    error
}

func (f *recordingFeed) Publish(_ context.Context, event *core.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
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

func openUsers(t *testing.T, opts ...table.Option) (*table.Handle, *docstore.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	catalog := schema.NewCatalog(store)
	_, _, err := catalog.CreateTable(ctx, scope, schema.TableDefinition{
		Name: "Users",
		Columns: []schema.ColumnDefinition{
			{Name: "name", Type: "VARCHAR(32)"},
			{Name: "age", Type: "INT"},
		},
	})
	require.NoError(t, err)

	handle, err := table.Open(ctx, catalog, store, scope, "users", opts...)
	require.NoError(t, err)
	return handle, store
}

func TestOpenMissingTable(t *testing.T) {
	store := docstore.NewMemoryStore()
	_, err := table.Open(context.Background(), schema.NewCatalog(store), store, scope, "ghost")
	assert.True(t, errors.Is(err, core.ErrTableNotFound), "got %v", err)
}

func TestHandleRowsOrderColumns(t *testing.T) {
	ctx := context.Background()
	handle, _ := openUsers(t)
	assert.Equal(t, []string{"name", "age"}, handle.ColumnNames())

	id, err := handle.Insert(ctx, map[string]interface{}{"zeta": "z", "age": int64(30), "name": "ann", "extra": true})
	require.NoError(t, err)

	rows, err := handle.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, handle.Meta().ID, rows[0].TableID)
	assert.Equal(t, []string{"name", "age", "extra", "zeta"}, rows[0].Keys())
	assert.Same(t, rows[0], rows[0].Source("users"))
}

func TestHandleWritesPublishEvents(t *testing.T) {
	ctx := context.Background()
	feed := &recordingFeed{}
	stamp := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	handle, _ := openUsers(t, table.WithChangeFeed(feed), table.WithClock(func() time.Time { return stamp }))

	id, err := handle.Insert(ctx, map[string]interface{}{"name": "ann"})
	require.NoError(t, err)
	require.NoError(t, handle.Update(ctx, id, map[string]interface{}{"age": int64(31)}))

	rows, err := handle.Rows(ctx)
	require.NoError(t, err)
	age, _ := rows[0].Get("age")
	assert.Equal(t, int64(31), age)

	require.NoError(t, handle.Delete(ctx, id))
	rows, err = handle.Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	handle.Announce(ctx, core.OperationAlterTable)

	require.Len(t, feed.events, 4)
	ops := make([]core.OperationType, len(feed.events))
	for i, e := range feed.events {
		ops[i] = e.Operation
		assert.Equal(t, "acme", e.Tenant)
		assert.Equal(t, "Users", e.Table)
		assert.Equal(t, stamp, e.Timestamp)
	}
	assert.Equal(t, []core.OperationType{core.OperationInsert, core.OperationUpdate, core.OperationDelete, core.OperationAlterTable}, ops)
	assert.Equal(t, id, feed.events[0].DocumentID)
	assert.Equal(t, map[string]interface{}{"age": int64(31)}, feed.events[1].Data)
	assert.Empty(t, feed.events[3].DocumentID)
}

func TestHandlePublishFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	var warnings []string
	feed := &recordingFeed{err: errors.New("broker down")}
	handle, _ := openUsers(t, table.WithChangeFeed(feed), table.WithWarnings(func(w string) { warnings = append(warnings, w) }))

	_, err := handle.Insert(ctx, map[string]interface{}{"name": "ann"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "broker down")
}

func TestHandleUpdateMissingRow(t *testing.T) {
	handle, _ := openUsers(t)
	err := handle.Update(context.Background(), "nope", map[string]interface{}{"age": int64(1)})
	assert.True(t, errors.Is(err, core.ErrDocumentNotFound), "got %v", err)
}
