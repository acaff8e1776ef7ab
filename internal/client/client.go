package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/rzpsarthak13/docsql/internal/changefeed"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/docstore"
	"github.com/rzpsarthak13/docsql/internal/engine"
	"github.com/rzpsarthak13/docsql/internal/metrics"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// ErrClientClosed is returned by every operation after Close.
var ErrClientClosed = errors.New("client is closed")

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// TableDescription is the metadata of one table.
type TableDescription struct {
	Table       *core.TableMeta
	Columns     []core.ColumnMeta
	Constraints []core.ConstraintMeta
}

// ClientImpl wires the configured document store, change feed, metrics, and
// engine together.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	store     core.DocumentStore
	feed      core.ChangeFeed
	engine    *engine.Engine
	metrics   *metrics.Metrics
	lifecycle *registry.LifecycleManager
	closed    bool
}

// Option customizes a client before its connections are opened.
type Option func(*options)

type options struct {
	store      core.DocumentStore
	engineOpts []engine.Option
}

// WithStore uses store instead of creating one from the configuration.
// The client takes ownership and closes it on Close.
func WithStore(store core.DocumentStore) Option {
	return func(o *options) { o.store = store }
}

// WithEngineOptions appends engine options after the configured ones.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// NewClientImpl creates a client from the configuration of configProvider.
func NewClientImpl(configProvider ConfigProvider, opts ...Option) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newClient(configMgr, opts...)
}

// NewClientFromFile creates a client from a YAML or JSON file, with environment
// overrides applied on top.
func NewClientFromFile(path string, opts ...Option) (*ClientImpl, error) {
	configMgr := registry.NewConfigManager()
	if path != "" {
		if err := configMgr.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := configMgr.LoadFromEnv(); err != nil {
		return nil, err
	}
	return newClient(configMgr, opts...)
}

func newClient(configMgr *registry.ConfigManager, opts ...Option) (*ClientImpl, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &ClientImpl{
		configMgr: configMgr,
		metrics:   metrics.New(),
		lifecycle: registry.NewLifecycleManager(),
	}
	if err := c.initializeConnections(o); err != nil {
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}
	return c, nil
}

// initializeConnections opens the document store and the change feed and builds the engine.
func (c *ClientImpl) initializeConnections(o *options) error {
	config := c.configMgr.GetConfig()

	store := o.store
	if store == nil {
		var err error
		store, err = docstore.Create(config.Store)
		if err != nil {
			return fmt.Errorf("failed to create document store: %w", err)
		}
	}
	c.store = store

	feed, err := changefeed.New(config.ChangeFeed, store)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create change feed: %w", err)
	}
	c.feed = feed

	engineOpts := []engine.Option{
		engine.WithObserver(c.metrics),
		engine.WithPermissiveJoins(config.Engine.PermissiveJoins),
		engine.WithDialectFallback(config.Engine.DialectFallback),
		engine.WithMaxStatements(config.Engine.MaxStatements),
		engine.WithStatementTimeout(config.Engine.StatementTimeout),
	}
	if feed != nil {
		engineOpts = append(engineOpts, engine.WithChangeFeed(feed))
	}
	c.engine = engine.New(store, append(engineOpts, o.engineOpts...)...)

	log.Printf("[CLIENT] Initialized with %s store (change feed enabled: %v)", config.Store.Type, feed != nil)
	return nil
}

func (c *ClientImpl) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Execute runs sqlText under scope.
func (c *ClientImpl) Execute(ctx context.Context, scope core.Scope, sqlText string) (*core.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.engine.Execute(ctx, scope, sqlText)
}

// ListTables returns the tables of scope ordered by name.
func (c *ClientImpl) ListTables(ctx context.Context, scope core.Scope) ([]*core.TableMeta, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return c.engine.Catalog().ListTables(ctx, scope)
}

// DescribeTable returns the metadata, columns, and constraints of a table.
func (c *ClientImpl) DescribeTable(ctx context.Context, scope core.Scope, name string) (*TableDescription, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	catalog := c.engine.Catalog()
	table, err := catalog.ResolveTable(ctx, scope, name)
	if err != nil {
		return nil, err
	}
	columns, err := catalog.Columns(ctx, scope, table.ID)
	if err != nil {
		return nil, err
	}
	constraints, err := catalog.Constraints(ctx, scope, table.ID)
	if err != nil {
		return nil, err
	}
	return &TableDescription{Table: table, Columns: columns, Constraints: constraints}, nil
}

// Feed returns the change feed, or nil when it is disabled.
func (c *ClientImpl) Feed() core.ChangeFeed {
	return c.feed
}

// Metrics returns the client's collectors.
func (c *ClientImpl) Metrics() *metrics.Metrics {
	return c.metrics
}

// Config returns the effective configuration.
func (c *ClientImpl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// RegisterHook adds a hook that runs on Start and Stop.
func (c *ClientImpl) RegisterHook(ctx context.Context, hook registry.LifecycleHook) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.lifecycle.RegisterHook(ctx, hook)
}

// Start runs the start hooks.
func (c *ClientImpl) Start(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.lifecycle.Start(ctx)
}

// Stop runs the stop hooks.
func (c *ClientImpl) Stop(ctx context.Context) error {
	return c.lifecycle.Stop(ctx)
}

// IsRunning reports whether the client has been started.
func (c *ClientImpl) IsRunning() bool {
	return c.lifecycle.IsRunning()
}

// Close stops background work and releases the feed and the store.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.lifecycle.Stop(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop hooks: %w", err))
	}
	if c.feed != nil {
		if err := c.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close change feed: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	log.Printf("[CLIENT] Closed")
	return nil
}
