package docsql

import (
	"time"
)

// Config represents the root configuration for the docsql client.
type Config struct {
	// Store selects and configures the document store backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// Engine contains query engine behaviour switches.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// ChangeFeed configures the queue that receives an event for every write.
	ChangeFeed ChangeFeedConfig `yaml:"changefeed" json:"changefeed"`

	// Server configures the HTTP API started by `docsql serve`.
	Server ServerConfig `yaml:"server" json:"server"`
}

// StoreConfig contains configuration for the document store.
type StoreConfig struct {
	// Type specifies the backend: "memory", "redis", "dynamodb", or "mysql".
	Type string `yaml:"type" json:"type"`

	// Redis is used when Type is "redis".
	Redis RedisConfig `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`

	// DynamoDB is used when Type is "dynamodb".
	DynamoDB DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	// MySQL is used when Type is "mysql".
	MySQL MySQLConfig `yaml:"mysql_config,omitempty" json:"mysql_config,omitempty"`

	// Redis client retry and timeout settings.
	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains configuration for the Redis document store.
type RedisConfig struct {
	// Endpoints is a list of Redis endpoints. Only the first is used.
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Password is the authentication password for Redis.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15).
	DB int `yaml:"db" json:"db"`

	// PoolSize is the connection pool size.
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// MinIdleConns is the minimum number of idle connections in the pool.
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DynamoDBConfig contains configuration for the DynamoDB document store.
type DynamoDBConfig struct {
	// Region is the AWS region.
	Region string `yaml:"region" json:"region"`

	// TableName is the single DynamoDB table that holds every collection.
	TableName string `yaml:"table_name" json:"table_name"`

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are static credentials. When empty the
	// default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// MySQLConfig configures the MySQL document store. Documents are kept as JSON
// rows of a single table, created on first connect.
type MySQLConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Database  string `yaml:"database" json:"database"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	TableName string `yaml:"table_name" json:"table_name"`

	// Pool settings, passed to database/sql.
	MaxOpenConns    int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns    int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`

	// ConnectionTimeout bounds the initial ping.
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// EngineConfig contains query engine behaviour switches.
type EngineConfig struct {
	// PermissiveJoins makes RIGHT and NATURAL joins pass the left rows through,
	// noted in the trace, instead of failing.
	PermissiveJoins bool `yaml:"permissive_joins" json:"permissive_joins"`

	// DialectFallback retries statements that fail to parse with ANSI quoting rewritten.
	DialectFallback bool `yaml:"dialect_fallback" json:"dialect_fallback"`

	// MaxStatements caps the statements of one Execute call. Zero means no cap.
	MaxStatements int `yaml:"max_statements" json:"max_statements"`

	// StatementTimeout bounds each statement. Zero means no timeout.
	StatementTimeout time.Duration `yaml:"statement_timeout" json:"statement_timeout"`
}

// ChangeFeedConfig contains change-feed and relay configuration.
type ChangeFeedConfig struct {
	// Enabled turns on event publishing.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// QueueType specifies the queue implementation type.
	// Options: "memory", "redis", "kafka" (default: "memory").
	// "redis" requires the Redis document store.
	QueueType string `yaml:"queue_type" json:"queue_type"`

	// QueueBufferSize is the buffer size for the in-memory queue.
	QueueBufferSize int `yaml:"queue_buffer_size,omitempty" json:"queue_buffer_size,omitempty"`

	// RedisKey is the key prefix of the Redis lists.
	RedisKey string `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`

	// BatchSize is how many events the relay polls at once.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// RelayRate is the maximum number of events per second handed to the relay handler.
	RelayRate int `yaml:"relay_rate" json:"relay_rate"`

	// Kafka contains Kafka-specific configuration.
	// Only used when QueueType is "kafka".
	Kafka KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// KafkaConfig configures the Kafka change feed. Producer and consumer settings
// map directly onto kafka.Writer and kafka.ReaderConfig.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	GroupID string   `yaml:"group_id" json:"group_id"`

	// Producer.
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"` // 0, 1, or -1 for all replicas
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`

	// Consumer. ReadTimeout is how long one Poll waits for the next message.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	MinBytes    int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes    int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait     time.Duration `yaml:"max_wait" json:"max_wait"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" json:"addr"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults: an in-memory
// store and no change feed.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 2,
				KeyPrefix:    "docsql",
			},
			DynamoDB: DynamoDBConfig{
				Region:    "us-east-1",
				TableName: "docsql-documents",
			},
			MySQL: MySQLConfig{
				Host:              "localhost",
				Port:              3306,
				Database:          "docsql",
				TableName:         "documents",
				MaxOpenConns:      25,
				MaxIdleConns:      5,
				ConnMaxLifetime:   5 * time.Minute,
				ConnMaxIdleTime:   10 * time.Minute,
				ConnectionTimeout: 10 * time.Second,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Engine: EngineConfig{
			DialectFallback:  true,
			MaxStatements:    100,
			StatementTimeout: 30 * time.Second,
		},
		ChangeFeed: ChangeFeedConfig{
			QueueType:       "memory",
			QueueBufferSize: 10000,
			RedisKey:        "docsql:changefeed",
			BatchSize:       100,
			RelayRate:       200,
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "docsql-changes",
				GroupID:         "docsql-relay",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024, // 10MB
				MaxWait:         100 * time.Millisecond,
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}
