package changefeed

import (
	"fmt"
	"log"

	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// New builds the change feed selected by config.QueueType. The Redis feed shares
// the document store's connection, so store must be a Redis store in that case.
// It returns nil, nil when the feed is disabled.
func New(config registry.InternalChangeFeedConfig, store core.DocumentStore) (core.ChangeFeed, error) {
	if !config.Enabled {
		return nil, nil
	}

	switch config.QueueType {
	case "memory", "":
		log.Printf("[CHANGEFEED] Using memory feed (buffer %d)", config.QueueBufferSize)
		return NewMemoryQueue(config.QueueBufferSize), nil
	case "redis":
		feed, err := NewRedisQueue(store, config.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis change feed: %w", err)
		}
		log.Printf("[CHANGEFEED] Using redis feed under %s", feed.prefix)
		return feed, nil
	case "kafka":
		kc := config.KafkaConfig
		feed, err := NewKafkaQueue(KafkaQueueConfig{
			Brokers:         kc.Brokers,
			Topic:           kc.Topic,
			GroupID:         kc.GroupID,
			BatchSize:       kc.BatchSize,
			BatchTimeout:    kc.BatchTimeout,
			WriteTimeout:    kc.WriteTimeout,
			ReadTimeout:     kc.ReadTimeout,
			RequiredAcks:    kc.RequiredAcks,
			MaxMessageBytes: kc.MaxMessageBytes,
			MinBytes:        kc.MinBytes,
			MaxBytes:        kc.MaxBytes,
			MaxWait:         kc.MaxWait,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka change feed: %w", err)
		}
		return feed, nil
	default:
		return nil, fmt.Errorf("unsupported change feed queue type: %s", config.QueueType)
	}
}
