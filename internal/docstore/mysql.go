package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MySQLStore implements core.DocumentStore on one MySQL table holding every
// document as a JSON body. The auto-increment seq column preserves insertion order.
type MySQLStore struct {
	db     *sql.DB
	table  string
	closed atomic.Bool
}

// NewMySQLStore opens the connection pool, verifies it, and creates the documents table if needed.
func NewMySQLStore(host string, port int, database, username, password, table string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime, connectionTimeout time.Duration) (*MySQLStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid documents table name: %q", table)
	}

	cfg := mysql.NewConfig()
	cfg.User = username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Timeout = connectionTimeout

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure MySQL connector: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{db: db, table: table}
	if err := store.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[DOCSTORE] Connected to MySQL %s/%s (table %s)", cfg.Addr, database, table)
	return store, nil
}

func (m *MySQLStore) ensureTable(ctx context.Context) error {
	ddl := "CREATE TABLE IF NOT EXISTS `" + m.table + "` (" +
		"seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"scope_path VARCHAR(255) NOT NULL," +
		"collection VARCHAR(512) NOT NULL," +
		"doc_id CHAR(36) NOT NULL," +
		"body JSON NOT NULL," +
		"UNIQUE KEY uq_document (scope_path, collection(255), doc_id)" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// ListDocuments returns the documents of a collection in insertion order.
func (m *MySQLStore) ListDocuments(ctx context.Context, scope core.Scope, collection string) ([]core.Document, error) {
	if m.closed.Load() {
		return nil, core.ErrStoreClosed
	}

	query := "SELECT doc_id, body FROM `" + m.table + "` WHERE scope_path = ? AND collection = ? ORDER BY seq"
	rows, err := m.db.QueryContext(ctx, query, scope.Path(), collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []core.Document{}
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeFields(body)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, core.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}
	return docs, nil
}

// AddDocument inserts a new document under a generated UUID.
func (m *MySQLStore) AddDocument(ctx context.Context, scope core.Scope, collection string, fields map[string]interface{}) (string, error) {
	if m.closed.Load() {
		return "", core.ErrStoreClosed
	}

	body, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	query := "INSERT INTO `" + m.table + "` (scope_path, collection, doc_id, body) VALUES (?, ?, ?, ?)"
	if _, err := m.db.ExecContext(ctx, query, scope.Path(), collection, id, body); err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return id, nil
}

// UpdateDocument merges fields into an existing document inside a transaction.
func (m *MySQLStore) UpdateDocument(ctx context.Context, scope core.Scope, collection, id string, fields map[string]interface{}) error {
	if m.closed.Load() {
		return core.ErrStoreClosed
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body []byte
	query := "SELECT body FROM `" + m.table + "` WHERE scope_path = ? AND collection = ? AND doc_id = ? FOR UPDATE"
	err = tx.QueryRowContext(ctx, query, scope.Path(), collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", core.ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", id, err)
	}

	current, err := decodeFields(body)
	if err != nil {
		return err
	}
	merged, err := encodeFields(mergeFields(current, fields))
	if err != nil {
		return err
	}

	update := "UPDATE `" + m.table + "` SET body = ? WHERE scope_path = ? AND collection = ? AND doc_id = ?"
	if _, err := tx.ExecContext(ctx, update, merged, scope.Path(), collection, id); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update of %s: %w", id, err)
	}
	return nil
}

// DeleteDocument removes a document if present.
func (m *MySQLStore) DeleteDocument(ctx context.Context, scope core.Scope, collection, id string) error {
	if m.closed.Load() {
		return core.ErrStoreClosed
	}

	query := "DELETE FROM `" + m.table + "` WHERE scope_path = ? AND collection = ? AND doc_id = ?"
	if _, err := m.db.ExecContext(ctx, query, scope.Path(), collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// DeleteCollection removes a collection and every collection nested under it.
func (m *MySQLStore) DeleteCollection(ctx context.Context, scope core.Scope, collection string) error {
	if m.closed.Load() {
		return core.ErrStoreClosed
	}

	query := "DELETE FROM `" + m.table + "` WHERE scope_path = ? AND (collection = ? OR collection LIKE ?)"
	nested := escapeLike(collection) + "/%"
	if _, err := m.db.ExecContext(ctx, query, scope.Path(), collection, nested); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	return nil
}

// Close closes the connection pool.
func (m *MySQLStore) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	return m.db.Close()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// MySQLStoreFactory creates MySQL-backed document stores.
type MySQLStoreFactory struct{}

// Type returns "mysql".
func (f *MySQLStoreFactory) Type() string {
	return "mysql"
}

// Validate validates the MySQL-specific configuration.
func (f *MySQLStoreFactory) Validate(config registry.InternalStoreConfig) error {
	if config.Type != "mysql" {
		return fmt.Errorf("invalid type for MySQL factory: %s", config.Type)
	}
	mc := config.MySQLConfig
	if mc.Host == "" {
		return fmt.Errorf("mysql_config.host is required")
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return fmt.Errorf("mysql_config.port must be between 1 and 65535")
	}
	if mc.Database == "" {
		return fmt.Errorf("mysql_config.database is required")
	}
	if mc.Username == "" {
		return fmt.Errorf("mysql_config.username is required")
	}
	if !tableNamePattern.MatchString(mc.TableName) {
		return fmt.Errorf("mysql_config.table_name must match %s", tableNamePattern)
	}
	if mc.MaxOpenConns <= 0 {
		return fmt.Errorf("mysql_config.max_open_conns must be greater than 0")
	}
	if mc.ConnectionTimeout <= 0 {
		return fmt.Errorf("mysql_config.connection_timeout must be greater than 0")
	}
	return nil
}

// Create connects a new MySQLStore.
func (f *MySQLStoreFactory) Create(config registry.InternalStoreConfig) (core.DocumentStore, error) {
	mc := config.MySQLConfig
	store, err := NewMySQLStore(mc.Host, mc.Port, mc.Database, mc.Username, mc.Password, mc.TableName,
		mc.MaxOpenConns, mc.MaxIdleConns, mc.ConnMaxLifetime, mc.ConnMaxIdleTime, mc.ConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL document store: %w", err)
	}
	return store, nil
}

func init() {
	register(&MySQLStoreFactory{})
}
