package core

import (
	"context"
	"fmt"
	"strings"
)

// Scope identifies the tenant and project under which all tables are resolved.
type Scope struct {
	// Tenant is the owning tenant (user or organisation) identifier.
	Tenant string

	// Project is the logical project or namespace inside the tenant.
	Project string
}

// Validate reports ErrUnauthorized when either identifier is missing.
func (s Scope) Validate() error {
	if strings.TrimSpace(s.Tenant) == "" || strings.TrimSpace(s.Project) == "" {
		return fmt.Errorf("%w: tenant and project are required", ErrUnauthorized)
	}
	return nil
}

// Path returns the storage path that prefixes every collection of the scope.
func (s Scope) Path() string {
	return "tenants/" + s.Tenant + "/projects/" + s.Project
}

func (s Scope) String() string {
	return s.Tenant + "/" + s.Project
}

// Document is a single schemaless record stored in a collection.
type Document struct {
	// ID is the storage-assigned identifier of the document.
	ID string

	// Fields holds the document body.
	Fields map[string]interface{}
}

// DocumentStore defines the collection-scoped CRUD surface of the storage backend.
// Collections are addressed by a scope and a slash-separated collection path;
// implementations must return documents of a collection in insertion order.
type DocumentStore interface {
	// ListDocuments returns every document in the collection.
	// A collection that was never written to yields an empty slice.
	ListDocuments(ctx context.Context, scope Scope, collection string) ([]Document, error)

	// AddDocument stores a new document and returns its generated identifier.
	AddDocument(ctx context.Context, scope Scope, collection string, fields map[string]interface{}) (string, error)

	// UpdateDocument merges fields into an existing document.
	// Returns ErrDocumentNotFound when the document does not exist.
	UpdateDocument(ctx context.Context, scope Scope, collection, id string, fields map[string]interface{}) error

	// DeleteDocument removes a document. Deleting a missing document is not an error.
	DeleteDocument(ctx context.Context, scope Scope, collection, id string) error

	// DeleteCollection removes the collection and every collection nested below it.
	DeleteCollection(ctx context.Context, scope Scope, collection string) error

	// Close releases the backend connection.
	Close() error
}

// Reserved metadata collections, relative to a scope path.
const (
	TablesCollection      = "tables"
	ColumnsCollection     = "columns"
	ConstraintsCollection = "constraints"
)

// RowsCollection returns the collection path holding the rows of a table.
func RowsCollection(tableID string) string {
	return TablesCollection + "/" + tableID + "/rows"
}
