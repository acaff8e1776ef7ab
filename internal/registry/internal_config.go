package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	Store      InternalStoreConfig      `yaml:"store" json:"store"`
	Engine     InternalEngineConfig     `yaml:"engine" json:"engine"`
	ChangeFeed InternalChangeFeedConfig `yaml:"changefeed" json:"changefeed"`
	Server     InternalServerConfig     `yaml:"server" json:"server"`
}

// InternalStoreConfig contains configuration for the document store.
// Backends (memory, Redis, DynamoDB, MySQL) plug in through the docstore factory registry.
type InternalStoreConfig struct {
	Type           string                 `yaml:"type" json:"type"`
	RedisConfig    InternalRedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
	MySQLConfig    InternalMySQLConfig    `yaml:"mysql_config,omitempty" json:"mysql_config,omitempty"`
	MaxRetries     int                    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout    time.Duration          `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout    time.Duration          `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration          `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
	KeyPrefix    string   `yaml:"key_prefix" json:"key_prefix"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalMySQLConfig contains configuration for the MySQL document store.
type InternalMySQLConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	TableName         string        `yaml:"table_name" json:"table_name"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalEngineConfig contains query engine behaviour switches.
type InternalEngineConfig struct {
	// PermissiveJoins makes RIGHT and NATURAL joins pass the left side through
	// (recorded in the trace) instead of failing.
	PermissiveJoins bool `yaml:"permissive_joins" json:"permissive_joins"`

	// DialectFallback retries a failed parse with ANSI quoting rewritten.
	DialectFallback bool `yaml:"dialect_fallback" json:"dialect_fallback"`

	// MaxStatements caps the statements of one Execute call. Zero means no cap.
	MaxStatements int `yaml:"max_statements" json:"max_statements"`

	// StatementTimeout bounds each statement. Zero means no timeout.
	StatementTimeout time.Duration `yaml:"statement_timeout" json:"statement_timeout"`
}

// InternalChangeFeedConfig contains change-feed and relay configuration.
type InternalChangeFeedConfig struct {
	Enabled         bool                `yaml:"enabled" json:"enabled"`
	QueueType       string              `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize int                 `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	RedisKey        string              `yaml:"redis_key" json:"redis_key"`
	BatchSize       int                 `yaml:"batch_size" json:"batch_size"`
	RelayRate       int                 `yaml:"relay_rate" json:"relay_rate"` // events per second handed to the relay handler
	KafkaConfig     InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// InternalServerConfig contains HTTP server configuration.
type InternalServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
