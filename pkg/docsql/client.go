// Package docsql runs SQL statements against a per-tenant document store.
//
// Typical usage:
//
//	client, _ := docsql.NewClient(docsql.DefaultConfig())
//	defer client.Close()
//
//	scope := docsql.Scope{Tenant: "acme", Project: "shop"}
//	client.Execute(ctx, scope, "CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(50))")
//	result, _ := client.Execute(ctx, scope, "SELECT name FROM users ORDER BY id")
package docsql

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/docsql/internal/client"
)

// Client is the main interface for running SQL against the document store.
type Client interface {
	// Execute runs one or more semicolon-separated statements in scope and
	// returns the result of the last one. Statements run in order and earlier
	// writes stay applied when a later statement fails.
	Execute(ctx context.Context, scope Scope, sql string) (*Result, error)

	// ListTables returns the tables of scope ordered by name.
	ListTables(ctx context.Context, scope Scope) ([]*TableMeta, error)

	// DescribeTable returns the columns and constraints of a table.
	// The name is matched case-insensitively.
	DescribeTable(ctx context.Context, scope Scope, name string) (*TableInfo, error)

	// NewRelay creates a relay that drains the change feed into handler.
	// The relay starts and stops with the client. Returns an error when the
	// change feed is disabled.
	NewRelay(ctx context.Context, handler ChangeHandler) (*Relay, error)

	// Start starts the background relays. It is non-blocking.
	Start(ctx context.Context) error

	// Stop gracefully stops the background relays.
	Stop() error

	// IsRunning returns whether the relays are currently running.
	IsRunning() bool

	// Close stops the relays and closes all connections.
	Close() error
}

// configProvider implements client.ConfigProvider to provide config as YAML without import cycles.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// clientWrapper wraps the internal client implementation to provide the public Client interface.
type clientWrapper struct {
	mu     sync.Mutex
	impl   *client.ClientImpl
	config *Config
	relays []*Relay
}

// NewClient creates a new client with the provided configuration. It opens the
// configured document store and change feed; an error is returned if either
// cannot be reached.
func NewClient(config *Config) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	impl, err := client.NewClientImpl(&configProvider{config: config})
	if err != nil {
		return nil, err
	}
	return &clientWrapper{impl: impl, config: config}, nil
}

// NewClientFromFile creates a client from a YAML or JSON config file. DOCSQL_*
// environment variables override file values. An empty path uses defaults and
// the environment only.
func NewClientFromFile(path string) (Client, error) {
	impl, err := client.NewClientFromFile(path)
	if err != nil {
		return nil, err
	}
	return &clientWrapper{impl: impl}, nil
}

func (cw *clientWrapper) Execute(ctx context.Context, scope Scope, sql string) (*Result, error) {
	return cw.impl.Execute(ctx, scope, sql)
}

func (cw *clientWrapper) ListTables(ctx context.Context, scope Scope) ([]*TableMeta, error) {
	return cw.impl.ListTables(ctx, scope)
}

func (cw *clientWrapper) DescribeTable(ctx context.Context, scope Scope, name string) (*TableInfo, error) {
	desc, err := cw.impl.DescribeTable(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	return &TableInfo{Table: desc.Table, Columns: desc.Columns, Constraints: desc.Constraints}, nil
}

func (cw *clientWrapper) NewRelay(ctx context.Context, handler ChangeHandler) (*Relay, error) {
	feed := cw.impl.Feed()
	if feed == nil {
		return nil, fmt.Errorf("change feed is disabled")
	}

	config := cw.impl.Config().ChangeFeed
	relayConfig := DefaultRelayConfig()
	relayConfig.Rate = config.RelayRate
	relayConfig.BatchSize = config.BatchSize

	relay := NewRelay(feed, handler, relayConfig)
	relay.SetObserver(cw.impl.Metrics())
	if err := cw.impl.RegisterHook(ctx, relay); err != nil {
		return nil, fmt.Errorf("failed to register relay: %w", err)
	}

	cw.mu.Lock()
	cw.relays = append(cw.relays, relay)
	cw.mu.Unlock()
	return relay, nil
}

func (cw *clientWrapper) Start(ctx context.Context) error {
	if err := cw.impl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relays: %w", err)
	}
	return nil
}

func (cw *clientWrapper) Stop() error {
	if err := cw.impl.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop relays: %w", err)
	}
	return nil
}

func (cw *clientWrapper) IsRunning() bool {
	return cw.impl.IsRunning()
}

func (cw *clientWrapper) Close() error {
	if err := cw.Stop(); err != nil {
		log.Printf("[CLIENT] Warning: error stopping relays: %v", err)
	}
	return cw.impl.Close()
}
