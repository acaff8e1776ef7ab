package table

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/schema"
)

// Handle is a resolved table: its metadata, its declared columns, and the row
// collection it reads from and writes to. Writes are announced on the change feed.
type Handle struct {
	scope   core.Scope
	meta    *core.TableMeta
	columns []core.ColumnMeta
	store   core.DocumentStore
	feed    core.ChangeFeed
	now     func() time.Time
	warn    func(string)
}

// Option configures a Handle.
type Option func(*Handle)

// WithChangeFeed publishes a change event after every successful write.
func WithChangeFeed(feed core.ChangeFeed) Option {
	return func(h *Handle) { h.feed = feed }
}

// WithClock replaces the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handle) { h.now = now }
}

// WithWarnings receives non-fatal problems such as change-feed publish failures.
func WithWarnings(warn func(string)) Option {
	return func(h *Handle) { h.warn = warn }
}

// New creates a handle for already-resolved metadata.
func New(scope core.Scope, meta *core.TableMeta, columns []core.ColumnMeta, store core.DocumentStore, opts ...Option) *Handle {
	h := &Handle{
		scope:   scope,
		meta:    meta,
		columns: columns,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open resolves a table by name through the catalog.
// Returns an error wrapping core.ErrTableNotFound when the table does not exist.
func Open(ctx context.Context, catalog *schema.Catalog, store core.DocumentStore, scope core.Scope, name string, opts ...Option) (*Handle, error) {
	meta, err := catalog.ResolveTable(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	columns, err := catalog.Columns(ctx, scope, meta.ID)
	if err != nil {
		return nil, err
	}
	return New(scope, meta, columns, store, opts...), nil
}

// Meta returns the table metadata.
func (h *Handle) Meta() *core.TableMeta {
	return h.meta
}

// Name returns the table's display name.
func (h *Handle) Name() string {
	return h.meta.Name
}

// Columns returns the declared columns ordered by position.
func (h *Handle) Columns() []core.ColumnMeta {
	return h.columns
}

// ColumnNames returns the declared column names in order.
func (h *Handle) ColumnNames() []string {
	return core.ColumnNames(h.columns)
}

// Rows fetches every row of the table. Declared columns lead each row in
// declaration order; undeclared document fields follow, sorted by name.
func (h *Handle) Rows(ctx context.Context) ([]*core.Row, error) {
	docs, err := h.store.ListDocuments(ctx, h.scope, core.RowsCollection(h.meta.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rows of %s: %w", h.meta.Name, err)
	}

	order := h.ColumnNames()
	rows := make([]*core.Row, len(docs))
	for i, doc := range docs {
		row := core.NewRowFromDocument(h.meta.ID, doc, order)
		row.SetQualifier(h.meta.Name)
		rows[i] = row
	}
	return rows, nil
}

// Insert writes a new row and returns its storage identifier.
func (h *Handle) Insert(ctx context.Context, fields map[string]interface{}) (string, error) {
	id, err := h.store.AddDocument(ctx, h.scope, core.RowsCollection(h.meta.ID), fields)
	if err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", h.meta.Name, err)
	}
	h.publish(ctx, core.OperationInsert, id, fields)
	return id, nil
}

// Update merges fields into the row with the given storage identifier.
func (h *Handle) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if err := h.store.UpdateDocument(ctx, h.scope, core.RowsCollection(h.meta.ID), id, fields); err != nil {
		return fmt.Errorf("failed to update %s row %s: %w", h.meta.Name, id, err)
	}
	h.publish(ctx, core.OperationUpdate, id, fields)
	return nil
}

// Delete removes the row with the given storage identifier.
func (h *Handle) Delete(ctx context.Context, id string) error {
	if err := h.store.DeleteDocument(ctx, h.scope, core.RowsCollection(h.meta.ID), id); err != nil {
		return fmt.Errorf("failed to delete %s row %s: %w", h.meta.Name, id, err)
	}
	h.publish(ctx, core.OperationDelete, id, nil)
	return nil
}

// Announce publishes a table-level event such as CREATE_TABLE.
func (h *Handle) Announce(ctx context.Context, op core.OperationType) {
	h.publish(ctx, op, "", nil)
}

func (h *Handle) publish(ctx context.Context, op core.OperationType, id string, data map[string]interface{}) {
	if h.feed == nil {
		return
	}
	event := &core.ChangeEvent{
		Tenant:     h.scope.Tenant,
		Project:    h.scope.Project,
		Table:      h.meta.Name,
		TableID:    h.meta.ID,
		Operation:  op,
		DocumentID: id,
		Data:       data,
		Timestamp:  h.now().UTC(),
	}
	if err := h.feed.Publish(ctx, event); err != nil {
		log.Printf("[TABLE] WARNING: Failed to publish %s event for %s: %v", op, h.meta.Name, err)
		if h.warn != nil {
			h.warn(fmt.Sprintf("change feed publish failed for %s %s: %v", op, h.meta.Name, err))
		}
	}
}
