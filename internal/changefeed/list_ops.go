package changefeed

import (
	"context"
)

// ListOperations is the list surface a store must offer to back a RedisQueue.
// docstore.RedisStore implements it.
type ListOperations interface {
	// ListPush appends a value to the end of a list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the first element of a list (LPOP).
	// Returns nil when the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the length of a list (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)
}
