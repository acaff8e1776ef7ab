package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/docsql/internal/core"
)

const defaultKafkaGroupID = "docsql-changefeed"

// KafkaQueue implements core.ChangeFeed on a Kafka topic. Events are keyed by
// table identifier so that the events of one table stay ordered within a partition.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	topic   string
	groupID string
	readTTL time.Duration

	mu     sync.RWMutex
	closed bool
	size   int // approximate; Kafka does not report pending messages per group
}

// KafkaQueueConfig holds configuration for a Kafka change feed.
type KafkaQueueConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	BatchSize       int
	BatchTimeout    time.Duration
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	RequiredAcks    int // 0, 1, or -1 (all)
	MaxMessageBytes int
	MinBytes        int
	MaxBytes        int
	MaxWait         time.Duration
}

// NewKafkaQueue creates a Kafka-backed change feed.
func NewKafkaQueue(config KafkaQueueConfig) (*KafkaQueue, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = defaultKafkaGroupID
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		BatchBytes:   int64(config.MaxMessageBytes),
		MaxAttempts:  3,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	log.Printf("[CHANGEFEED] Kafka feed ready: brokers=%v topic=%s group=%s", config.Brokers, config.Topic, config.GroupID)

	return &KafkaQueue{
		writer:  writer,
		reader:  reader,
		topic:   config.Topic,
		groupID: config.GroupID,
		readTTL: config.ReadTimeout,
	}, nil
}

// Publish writes the event to the topic synchronously.
func (q *KafkaQueue) Publish(ctx context.Context, event *core.ChangeEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
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

	message := kafka.Message{
		Key:   []byte(event.TableID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "tenant", Value: []byte(event.Tenant)},
			{Key: "project", Value: []byte(event.Project)},
			{Key: "table", Value: []byte(event.Table)},
		},
	}

	start := time.Now()
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("[CHANGEFEED] ERROR: Failed to write %s event for %s to topic %s: %v", event.Operation, event.Table, q.topic, err)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	q.mu.Lock()
	q.size++
	q.mu.Unlock()

	log.Printf("[CHANGEFEED] Produced %s event for %s to %s in %v", event.Operation, event.Table, q.topic, time.Since(start))
	return nil
}

// Poll reads up to batchSize events, committing each offset as it is decoded.
// It stops early when no message arrives within the read timeout.
func (q *KafkaQueue) Poll(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, core.ErrStoreClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		readCtx, cancel := context.WithTimeout(ctx, q.readTTL)
		message, err := q.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return events, fmt.Errorf("failed to read from Kafka topic %s: %w", q.topic, err)
		}

		var event core.ChangeEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("[CHANGEFEED] Skipping malformed message at partition %d offset %d: %v", message.Partition, message.Offset, err)
		} else {
			events = append(events, &event)
		}

		if err := q.reader.CommitMessages(ctx, message); err != nil {
			log.Printf("[CHANGEFEED] WARNING: Failed to commit offset %d on partition %d: %v", message.Offset, message.Partition, err)
		}
	}

	if len(events) > 0 {
		q.mu.Lock()
		q.size -= len(events)
		if q.size < 0 {
			q.size = 0
		}
		q.mu.Unlock()
		log.Printf("[CHANGEFEED] Consumed %d events from %s (group %s)", len(events), q.topic, q.groupID)
	}
	return events, nil
}

// Size returns the number of events this process produced and has not yet consumed.
func (q *KafkaQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Close flushes the writer and leaves the consumer group.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.writer.Close(); err != nil {
		log.Printf("[CHANGEFEED] ERROR: Failed to close Kafka writer: %v", err)
	}
	if err := q.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}
