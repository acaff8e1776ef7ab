package core

import (
	"context"
	"time"
)

// OperationType represents the kind of change recorded by a ChangeEvent.
type OperationType string

const (
	// OperationInsert represents a row written by INSERT.
	OperationInsert OperationType = "INSERT"

	// OperationUpdate represents a row modified by UPDATE.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete represents a row removed by DELETE.
	OperationDelete OperationType = "DELETE"

	// OperationCreateTable represents a table created by CREATE TABLE.
	OperationCreateTable OperationType = "CREATE_TABLE"

	// OperationDropTable represents a table removed by DROP TABLE.
	OperationDropTable OperationType = "DROP_TABLE"

	// OperationAlterTable represents a schema change made by ALTER TABLE.
	OperationAlterTable OperationType = "ALTER_TABLE"
)

// ChangeEvent describes a single mutation performed by the engine.
type ChangeEvent struct {
	// Tenant and Project identify the scope the change happened in.
	Tenant  string `json:"tenant"`
	Project string `json:"project"`

	// Table is the display name of the affected table.
	Table string `json:"table"`

	// TableID is the identifier of the affected table.
	TableID string `json:"tableId"`

	// Operation is the kind of change.
	Operation OperationType `json:"operation"`

	// DocumentID is the storage identifier of the affected row, if any.
	DocumentID string `json:"documentId,omitempty"`

	// Data carries the written fields for INSERT and UPDATE.
	Data map[string]interface{} `json:"data,omitempty"`

	// Timestamp is when the change was applied.
	Timestamp time.Time `json:"timestamp"`
}

// ChangeFeed is a queue of change events. The engine publishes to it after each
// successful write; a relay drains it.
type ChangeFeed interface {
	// Publish adds an event to the feed.
	Publish(ctx context.Context, event *ChangeEvent) error

	// Poll retrieves up to batchSize events. Returns an empty slice when none are available.
	Poll(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the number of pending events, or -1 when the backend cannot tell.
	Size() int

	// Close releases the feed's resources.
	Close() error
}
