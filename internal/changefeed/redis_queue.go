package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
)

var (
	// ErrInvalidEvent is returned when an event cannot be published.
	ErrInvalidEvent = errors.New("invalid change event")

	// ErrListOperationsNotSupported is returned when the store cannot back a Redis queue.
	ErrListOperationsNotSupported = errors.New("store does not support Redis list operations")
)

// RedisQueue implements core.ChangeFeed on a single Redis list. Relays that
// care about one table filter in their handler.
type RedisQueue struct {
	ops    ListOperations
	prefix string
	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue creates a Redis-backed change feed. Store must implement
// ListOperations; prefix namespaces the list keys (default "docsql:changes").
func NewRedisQueue(store interface{}, prefix string) (*RedisQueue, error) {
	ops, ok := store.(ListOperations)
	if !ok {
		return nil, ErrListOperationsNotSupported
	}
	if prefix == "" {
		prefix = "docsql:changes"
	}
	return &RedisQueue{ops: ops, prefix: prefix}, nil
}

func (q *RedisQueue) globalKey() string {
	return q.prefix + ":global"
}

func (q *RedisQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Publish serializes the event as JSON and appends it to the list.
func (q *RedisQueue) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if q.isClosed() {
		return core.ErrStoreClosed
	}
	if err := validateEvent(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := q.ops.ListPush(ctx, q.globalKey(), data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Poll pops up to batchSize events from the list in FIFO order.
func (q *RedisQueue) Poll(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, core.ErrStoreClosed
	}
	key := q.globalKey()
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		data, err := q.ops.ListPop(ctx, key)
		if err != nil {
			return events, fmt.Errorf("failed to poll change events: %w", err)
		}
		if data == nil {
			break
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[CHANGEFEED] Skipping malformed event in %s: %v", key, err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns the length of the list, or -1 when Redis cannot be reached.
func (q *RedisQueue) Size() int {
	if q.isClosed() {
		return 0
	}
	n, err := q.ops.ListLength(context.Background(), q.globalKey())
	if err != nil {
		return -1
	}
	return int(n)
}

// Close stops the queue. The store's connection is owned by the store.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func validateEvent(event *core.ChangeEvent) error {
	if event == nil {
		return ErrInvalidEvent
	}
	if event.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidEvent)
	}
	if event.Operation == "" {
		return fmt.Errorf("%w: operation is required", ErrInvalidEvent)
	}
	return nil
}
