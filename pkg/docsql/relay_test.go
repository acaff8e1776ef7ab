package docsql

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/changefeed"
	"github.com/rzpsarthak13/docsql/internal/core"
)

type collector struct {
	mu     sync.Mutex
	events []*ChangeEvent
	fail   int
}

func (c *collector) handle(_ context.Context, event *ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return errors.New("sink unavailable")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type observed struct {
	mu   sync.Mutex
	errs []error
}

func (o *observed) ObserveRelay(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func publish(t *testing.T, feed core.ChangeFeed, tables ...string) {
	t.Helper()
	for _, table := range tables {
		require.NoError(t, feed.Publish(context.Background(), &core.ChangeEvent{
			Table:     table,
			Operation: core.OperationInsert,
		}))
	}
}

func fastConfig() RelayConfig {
	return RelayConfig{
		Rate:         1000,
		BatchSize:    10,
		PollInterval: 5 * time.Millisecond,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func TestNewRelayAppliesDefaults(t *testing.T) {
	relay := NewRelay(changefeed.NewMemoryQueue(1), nil, RelayConfig{MaxRetries: -1})
	assert.Equal(t, DefaultRelayConfig().Rate, relay.config.Rate)
	assert.Equal(t, DefaultRelayConfig().BatchSize, relay.config.BatchSize)
	assert.Equal(t, 0, relay.config.MaxRetries)

	assert.Error(t, relay.Start(context.Background()))
	assert.False(t, relay.IsRunning())
}

func TestRelayDeliversInOrder(t *testing.T) {
	feed := changefeed.NewMemoryQueue(10)
	publish(t, feed, "a", "b", "c")

	sink := &collector{}
	obs := &observed{}
	relay := NewRelay(feed, sink.handle, fastConfig())
	relay.SetObserver(obs)

	require.NoError(t, relay.Start(context.Background()))
	require.NoError(t, relay.Start(context.Background()))
	assert.True(t, relay.IsRunning())

	require.Eventually(t, func() bool { return sink.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())
	require.NoError(t, relay.Stop())
	assert.False(t, relay.IsRunning())

	var tables []string
	for _, event := range sink.events {
		tables = append(tables, event.Table)
	}
	assert.Equal(t, []string{"a", "b", "c"}, tables)
	assert.Equal(t, 0, relay.Pending())

	relayed, failed := relay.Stats()
	assert.Equal(t, 3, relayed)
	assert.Equal(t, 0, failed)
	assert.Len(t, obs.errs, 3)
}

func TestRelayRetriesThenDrops(t *testing.T) {
	feed := changefeed.NewMemoryQueue(10)
	publish(t, feed, "flaky", "dropped")

	// The first event fails twice then succeeds; the second exhausts its retries.
	sink := &collector{fail: 2}
	config := fastConfig()
	relay := NewRelay(feed, func(ctx context.Context, event *ChangeEvent) error {
		if event.Table == "dropped" {
			return errors.New("rejected")
		}
		return sink.handle(ctx, event)
	}, config)

	require.NoError(t, relay.Start(context.Background()))
	require.Eventually(t, func() bool {
		relayed, failed := relay.Stats()
		return relayed == 1 && failed == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())

	assert.Equal(t, 1, sink.count())
}

func TestRelayStopRequeuesRestOfBatch(t *testing.T) {
	feed := changefeed.NewMemoryQueue(20)
	publish(t, feed, "a", "b", "c", "d", "e", "f", "g", "h")

	sink := &collector{}
	config := fastConfig()
	config.Rate = 2
	relay := NewRelay(feed, sink.handle, config)

	require.NoError(t, relay.Start(context.Background()))
	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())

	delivered := sink.count()
	assert.Less(t, delivered, 8)
	assert.Equal(t, 8-delivered, feed.Size())

	rest, err := feed.Poll(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, rest)
	assert.Equal(t, sink.events[delivered-1].Table[0]+1, rest[0].Table[0])
}

func TestRelayRestarts(t *testing.T) {
	feed := changefeed.NewMemoryQueue(10)
	sink := &collector{}
	relay := NewRelay(feed, sink.handle, fastConfig())

	require.NoError(t, relay.Start(context.Background()))
	require.NoError(t, relay.Stop())

	publish(t, feed, "later")
	require.NoError(t, relay.Start(context.Background()))
	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, relay.Stop())
}
