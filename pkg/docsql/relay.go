package docsql

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// ChangeHandler receives the change events drained by a Relay.
type ChangeHandler func(ctx context.Context, event *ChangeEvent) error

// RelayObserver is notified of every event a relay hands to its handler.
type RelayObserver interface {
	ObserveRelay(err error)
}

// Relay drains the change feed in the background and hands each event to a
// handler at a controlled rate, so downstream consumers (search indexers,
// caches, audit sinks) are not overwhelmed by write bursts.
type Relay struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc

	feed     core.ChangeFeed
	handler  ChangeHandler
	observer RelayObserver
	config   RelayConfig
	relayed  int
	failed   int
}

// RelayConfig contains configuration for the relay.
type RelayConfig struct {
	// Rate is the maximum number of events per second handed to the handler.
	// Example: Rate=100 means one event every 10ms.
	Rate int

	// BatchSize is how many events to poll at once.
	BatchSize int

	// PollInterval is how long to wait before polling again when the feed is empty.
	PollInterval time.Duration

	// MaxRetries is how many times a failing event is retried before it is dropped.
	MaxRetries int

	// RetryBackoff is the base duration for exponential backoff retries.
	RetryBackoff time.Duration
}

// DefaultRelayConfig returns sensible defaults for the relay.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Rate:         200,
		BatchSize:    100,
		PollInterval: 100 * time.Millisecond,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// NewRelay creates a relay over feed. It does nothing until Start.
func NewRelay(feed core.ChangeFeed, handler ChangeHandler, config RelayConfig) *Relay {
	defaults := DefaultRelayConfig()
	if config.Rate <= 0 {
		config.Rate = defaults.Rate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &Relay{
		feed:    feed,
		handler: handler,
		config:  config,
	}
}

// SetObserver registers an observer for relayed events.
func (r *Relay) SetObserver(observer RelayObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = observer
}

// Start begins the relay goroutine. It is non-blocking; the goroutine keeps
// running after ctx is done until Stop is called.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	if r.feed == nil || r.handler == nil {
		r.mu.Unlock()
		return errors.New("relay requires a change feed and a handler")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(runCtx)
	log.Printf("[RELAY] Started with rate: %d events/sec", r.config.Rate)
	return nil
}

// Stop stops the relay and waits for the event in flight to finish.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopCh, doneCh, cancel := r.stopCh, r.doneCh, r.cancel
	r.mu.Unlock()

	log.Printf("[RELAY] Stopping...")
	close(stopCh)
	cancel()
	<-doneCh
	log.Printf("[RELAY] Stopped")
	return nil
}

// OnStart starts the relay with its client.
func (r *Relay) OnStart(ctx context.Context) error {
	return r.Start(ctx)
}

// OnStop stops the relay with its client.
func (r *Relay) OnStop(context.Context) error {
	return r.Stop()
}

// IsRunning returns whether the relay is currently running.
func (r *Relay) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Pending returns the number of events waiting in the feed, or -1 when unknown.
func (r *Relay) Pending() int {
	if r.feed == nil {
		return 0
	}
	return r.feed.Size()
}

// Stats returns how many events were handled successfully and how many were dropped.
func (r *Relay) Stats() (relayed, failed int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relayed, r.failed
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.doneCh)

	limiter := rate.NewLimiter(rate.Limit(r.config.Rate), 1)
	startTime := time.Now()

	for {
		select {
		case <-r.stopCh:
			relayed, failed := r.Stats()
			log.Printf("[RELAY] Received stop signal, relayed %d events (%d dropped) in %v", relayed, failed, time.Since(startTime))
			return
		default:
		}

		events, err := r.feed.Poll(ctx, r.config.BatchSize)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[RELAY] Poll error: %v", err)
		}
		if len(events) == 0 {
			if !r.sleep(r.config.PollInterval) {
				return
			}
			continue
		}

		for i, event := range events {
			if event == nil {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				r.requeue(events[i:], err)
				return
			}
			r.deliver(ctx, event)
		}
	}
}

// requeue publishes undelivered events back onto the feed so the next relay
// run picks them up.
func (r *Relay) requeue(events []*ChangeEvent, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	requeued := 0
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := r.feed.Publish(ctx, event); err != nil {
			log.Printf("[RELAY] ERROR: Failed to requeue %s on %s: %v", event.Operation, event.Table, err)
			continue
		}
		requeued++
	}
	log.Printf("[RELAY] Interrupted mid-batch (%v), requeued %d events", cause, requeued)
}

// deliver hands one event to the handler, retrying with exponential backoff.
func (r *Relay) deliver(ctx context.Context, event *ChangeEvent) {
	var err error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if !r.sleep(r.config.RetryBackoff << (attempt - 1)) {
				break
			}
		}
		if err = r.handler(ctx, event); err == nil {
			break
		}
		log.Printf("[RELAY] Handler failed for %s on %s (attempt %d): %v", event.Operation, event.Table, attempt+1, err)
	}

	r.mu.Lock()
	if err == nil {
		r.relayed++
	} else {
		r.failed++
	}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer.ObserveRelay(err)
	}
}

// sleep waits for d or until the relay is stopped. Returns false when stopped.
func (r *Relay) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.stopCh:
		return false
	}
}
