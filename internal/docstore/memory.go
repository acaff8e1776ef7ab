package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// MemoryStore implements core.DocumentStore in process memory.
// It backs tests and single-process deployments; contents are lost on Close.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	closed      bool
}

type memoryCollection struct {
	order []string
	docs  map[string]map[string]interface{}
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

func memoryKey(scope core.Scope, collection string) string {
	return scope.Path() + "/" + collection
}

// ListDocuments returns the documents of a collection in insertion order.
func (m *MemoryStore) ListDocuments(ctx context.Context, scope core.Scope, collection string) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, core.ErrStoreClosed
	}

	coll, ok := m.collections[memoryKey(scope, collection)]
	if !ok {
		return []core.Document{}, nil
	}

	docs := make([]core.Document, 0, len(coll.order))
	for _, id := range coll.order {
		fields, err := copyFields(coll.docs[id])
		if err != nil {
			return nil, err
		}
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	return docs, nil
}

// AddDocument stores a new document under a generated UUID.
func (m *MemoryStore) AddDocument(ctx context.Context, scope core.Scope, collection string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored, err := copyFields(fields)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", core.ErrStoreClosed
	}

	key := memoryKey(scope, collection)
	coll, ok := m.collections[key]
	if !ok {
		coll = &memoryCollection{docs: make(map[string]map[string]interface{})}
		m.collections[key] = coll
	}

	id := uuid.NewString()
	coll.order = append(coll.order, id)
	coll.docs[id] = stored
	return id, nil
}

// UpdateDocument merges fields into an existing document.
func (m *MemoryStore) UpdateDocument(ctx context.Context, scope core.Scope, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	patch, err := copyFields(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrStoreClosed
	}

	coll, ok := m.collections[memoryKey(scope, collection)]
	if !ok {
		return fmt.Errorf("%w: %s/%s", core.ErrDocumentNotFound, collection, id)
	}
	current, ok := coll.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", core.ErrDocumentNotFound, collection, id)
	}
	coll.docs[id] = mergeFields(current, patch)
	return nil
}

// DeleteDocument removes a document if present.
func (m *MemoryStore) DeleteDocument(ctx context.Context, scope core.Scope, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrStoreClosed
	}

	coll, ok := m.collections[memoryKey(scope, collection)]
	if !ok {
		return nil
	}
	if _, ok := coll.docs[id]; !ok {
		return nil
	}
	delete(coll.docs, id)
	for i, existing := range coll.order {
		if existing == id {
			coll.order = append(coll.order[:i], coll.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteCollection removes a collection and every collection nested under it.
func (m *MemoryStore) DeleteCollection(ctx context.Context, scope core.Scope, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return core.ErrStoreClosed
	}

	key := memoryKey(scope, collection)
	for existing := range m.collections {
		if existing == key || strings.HasPrefix(existing, key+"/") {
			delete(m.collections, existing)
		}
	}
	return nil
}

// Close discards all documents.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.collections = nil
	return nil
}

// MemoryStoreFactory creates in-memory stores.
type MemoryStoreFactory struct{}

// Type returns "memory".
func (f *MemoryStoreFactory) Type() string {
	return "memory"
}

// Validate accepts any configuration; the memory store has no settings.
func (f *MemoryStoreFactory) Validate(config registry.InternalStoreConfig) error {
	if config.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", config.Type)
	}
	return nil
}

// Create returns a new empty MemoryStore.
func (f *MemoryStoreFactory) Create(config registry.InternalStoreConfig) (core.DocumentStore, error) {
	return NewMemoryStore(), nil
}

func init() {
	register(&MemoryStoreFactory{})
}
