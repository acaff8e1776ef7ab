package changefeed

import (
	"context"
	"errors"
	"sync"

	"github.com/rzpsarthak13/docsql/internal/core"
)

const (
	defaultBatchSize  = 100
	defaultBufferSize = 10000
)

// ErrQueueFull is returned when a memory queue has no room for another event.
var ErrQueueFull = errors.New("change feed is full")

// MemoryQueue implements core.ChangeFeed with a buffered channel.
// Events are lost when the process exits.
type MemoryQueue struct {
	queue  chan *core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory change feed holding up to bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &MemoryQueue{
		queue: make(chan *core.ChangeEvent, bufferSize),
	}
}

// Publish adds an event without blocking. Returns ErrQueueFull when the buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return core.ErrStoreClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Poll returns up to batchSize buffered events in FIFO order without waiting.
func (q *MemoryQueue) Poll(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close rejects further publishes. Buffered events can still be polled.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
