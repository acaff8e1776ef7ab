package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// RedisStore implements core.DocumentStore using Redis. Each collection is a
// hash of document ID → JSON body, paired with a list that records insertion order.
type RedisStore struct {
	client *redis.Client
	prefix string
	closed atomic.Bool
}

// NewRedisStore connects to the first endpoint and verifies the connection.
func NewRedisStore(endpoints []string, password string, db, poolSize, minIdleConns, maxRetries int, keyPrefix string, dialTimeout, readTimeout, writeTimeout time.Duration) (*RedisStore, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         endpoints[0],
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[DOCSTORE] Connected to Redis at %s (db %d)", endpoints[0], db)
	return &RedisStore{client: client, prefix: keyPrefix}, nil
}

func (r *RedisStore) collectionKey(scope core.Scope, collection string) string {
	return r.prefix + ":" + scope.Path() + "/" + collection
}

func orderKey(collectionKey string) string {
	return collectionKey + "#order"
}

// ListDocuments returns the documents of a collection in insertion order.
func (r *RedisStore) ListDocuments(ctx context.Context, scope core.Scope, collection string) ([]core.Document, error) {
	if r.closed.Load() {
		return nil, core.ErrStoreClosed
	}

	key := r.collectionKey(scope, collection)
	ids, err := r.client.LRange(ctx, orderKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read order of %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []core.Document{}, nil
	}

	bodies, err := r.client.HMGet(ctx, key, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read documents of %s: %w", collection, err)
	}

	docs := make([]core.Document, 0, len(ids))
	for i, raw := range bodies {
		body, ok := raw.(string)
		if !ok {
			// Order entry without a body: the document was deleted concurrently.
			continue
		}
		fields, err := decodeFields([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", ids[i], err)
		}
		docs = append(docs, core.Document{ID: ids[i], Fields: fields})
	}
	return docs, nil
}

// AddDocument stores a new document under a generated UUID.
func (r *RedisStore) AddDocument(ctx context.Context, scope core.Scope, collection string, fields map[string]interface{}) (string, error) {
	if r.closed.Load() {
		return "", core.ErrStoreClosed
	}

	body, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	key := r.collectionKey(scope, collection)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, id, body)
	pipe.RPush(ctx, orderKey(key), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return id, nil
}

// UpdateDocument merges fields into an existing document.
func (r *RedisStore) UpdateDocument(ctx context.Context, scope core.Scope, collection, id string, fields map[string]interface{}) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}

	key := r.collectionKey(scope, collection)
	raw, err := r.client.HGet(ctx, key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s/%s", core.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", id, err)
	}

	current, err := decodeFields(raw)
	if err != nil {
		return err
	}
	body, err := encodeFields(mergeFields(current, fields))
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, key, id, body).Err(); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

// DeleteDocument removes a document and its order entry.
func (r *RedisStore) DeleteDocument(ctx context.Context, scope core.Scope, collection, id string) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}

	key := r.collectionKey(scope, collection)
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, key, id)
	pipe.LRem(ctx, orderKey(key), 0, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// DeleteCollection removes a collection and every collection nested under it.
func (r *RedisStore) DeleteCollection(ctx context.Context, scope core.Scope, collection string) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}

	key := r.collectionKey(scope, collection)
	keys := []string{key, orderKey(key)}

	pattern := escapeGlob(key) + "/*"
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan nested collections of %s: %w", collection, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// Close closes the connection to Redis.
func (r *RedisStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.client.Close()
}

// GetClient returns the underlying Redis client.
func (r *RedisStore) GetClient() *redis.Client {
	return r.client
}

// ListPush appends a value to a list (RPUSH).
func (r *RedisStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.closed.Load() {
		return core.ErrStoreClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the first element of a list (LPOP).
// Returns nil, nil when the list is empty.
func (r *RedisStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, core.ErrStoreClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of a list (LLEN).
func (r *RedisStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.closed.Load() {
		return 0, core.ErrStoreClosed
	}
	return r.client.LLen(ctx, key).Result()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// RedisStoreFactory creates Redis-backed document stores.
type RedisStoreFactory struct{}

// Type returns "redis".
func (f *RedisStoreFactory) Type() string {
	return "redis"
}

// Validate validates the Redis-specific configuration.
func (f *RedisStoreFactory) Validate(config registry.InternalStoreConfig) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	rc := config.RedisConfig
	if len(rc.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if rc.DB < 0 || rc.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", rc.DB)
	}
	if rc.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", rc.PoolSize)
	}
	if rc.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", rc.MinIdleConns)
	}
	if rc.KeyPrefix == "" {
		return fmt.Errorf("key_prefix is required for Redis")
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	if config.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be greater than 0, got: %v", config.ReadTimeout)
	}
	if config.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be greater than 0, got: %v", config.WriteTimeout)
	}
	return nil
}

// Create connects a new RedisStore.
func (f *RedisStoreFactory) Create(config registry.InternalStoreConfig) (core.DocumentStore, error) {
	rc := config.RedisConfig
	store, err := NewRedisStore(rc.Endpoints, rc.Password, rc.DB, rc.PoolSize, rc.MinIdleConns, config.MaxRetries, rc.KeyPrefix,
		config.DialTimeout, config.ReadTimeout, config.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis document store: %w", err)
	}
	return store, nil
}

func init() {
	register(&RedisStoreFactory{})
}
