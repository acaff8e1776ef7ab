package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "DOCSQL_"

// ConfigValidator is the Strategy interface for validating configuration.
// Each document store backend (memory, Redis, DynamoDB, MySQL) registers a validator
// for its own section of the configuration.
type ConfigValidator interface {
	// Validate checks the store-specific part of the configuration.
	Validate(config *InternalConfig) error

	// Type returns the store type this validator handles (e.g., "memory", "redis").
	Type() string
}

var (
	validators   = make(map[string]ConfigValidator)
	validatorsMu sync.RWMutex
)

// RegisterValidator registers a config validator. It is called from the init()
// function of each store implementation and panics on nil, unnamed, or duplicate validators.
func RegisterValidator(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorsMu.Lock()
	defer validatorsMu.Unlock()

	if _, exists := validators[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}
	validators[validator.Type()] = validator
}

// GetValidator returns the validator registered for a store type.
func GetValidator(storeType string) (ConfigValidator, bool) {
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()

	validator, exists := validators[storeType]
	return validator, exists
}

// RegisteredValidatorTypes returns the store types that have a validator, sorted.
func RegisteredValidatorTypes() []string {
	validatorsMu.RLock()
	defer validatorsMu.RUnlock()

	types := make([]string, 0, len(validators))
	for t := range validators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

// DefaultInternalConfig returns a fresh copy of the defaults.
func DefaultInternalConfig() *InternalConfig {
	return defaultInternalConfig()
}

func defaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Store: InternalStoreConfig{
			Type: "memory",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 2,
				KeyPrefix:    "docsql",
			},
			DynamoDBConfig: InternalDynamoDBConfig{
				Region:    "us-east-1",
				TableName: "docsql-documents",
			},
			MySQLConfig: InternalMySQLConfig{
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
		Engine: InternalEngineConfig{
			PermissiveJoins:  false,
			DialectFallback:  true,
			MaxStatements:    100,
			StatementTimeout: 30 * time.Second,
		},
		ChangeFeed: InternalChangeFeedConfig{
			Enabled:         false,
			QueueType:       "memory",
			QueueBufferSize: 10000,
			RedisKey:        "docsql:changefeed",
			BatchSize:       100,
			RelayRate:       200,
			KafkaConfig: InternalKafkaConfig{
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
		Server: InternalServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data layered over the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data layered over the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv overrides the current configuration with environment variables.
// Variables follow the pattern DOCSQL_<SECTION>_<KEY>, for example:
//   - DOCSQL_STORE_TYPE=redis
//   - DOCSQL_STORE_REDIS_ENDPOINTS=localhost:6379,localhost:6380
//   - DOCSQL_STORE_MYSQL_PORT=3306
//   - DOCSQL_ENGINE_PERMISSIVE_JOINS=true
//   - DOCSQL_CHANGEFEED_QUEUE_TYPE=kafka
func (cm *ConfigManager) LoadFromEnv() error {
	config := *cm.config

	envString("STORE_TYPE", &config.Store.Type)
	envList("STORE_REDIS_ENDPOINTS", &config.Store.RedisConfig.Endpoints)
	envString("STORE_REDIS_PASSWORD", &config.Store.RedisConfig.Password)
	envInt("STORE_REDIS_DB", &config.Store.RedisConfig.DB)
	envInt("STORE_REDIS_POOL_SIZE", &config.Store.RedisConfig.PoolSize)
	envString("STORE_REDIS_KEY_PREFIX", &config.Store.RedisConfig.KeyPrefix)
	envString("STORE_DYNAMODB_REGION", &config.Store.DynamoDBConfig.Region)
	envString("STORE_DYNAMODB_TABLE_NAME", &config.Store.DynamoDBConfig.TableName)
	envString("STORE_DYNAMODB_ENDPOINT", &config.Store.DynamoDBConfig.Endpoint)
	envString("STORE_DYNAMODB_ACCESS_KEY_ID", &config.Store.DynamoDBConfig.AccessKeyID)
	envString("STORE_DYNAMODB_SECRET_ACCESS_KEY", &config.Store.DynamoDBConfig.SecretAccessKey)
	envString("STORE_MYSQL_HOST", &config.Store.MySQLConfig.Host)
	envInt("STORE_MYSQL_PORT", &config.Store.MySQLConfig.Port)
	envString("STORE_MYSQL_DATABASE", &config.Store.MySQLConfig.Database)
	envString("STORE_MYSQL_USERNAME", &config.Store.MySQLConfig.Username)
	envString("STORE_MYSQL_PASSWORD", &config.Store.MySQLConfig.Password)
	envString("STORE_MYSQL_TABLE_NAME", &config.Store.MySQLConfig.TableName)
	envInt("STORE_MAX_RETRIES", &config.Store.MaxRetries)
	envDuration("STORE_DIAL_TIMEOUT", &config.Store.DialTimeout)

	envBool("ENGINE_PERMISSIVE_JOINS", &config.Engine.PermissiveJoins)
	envBool("ENGINE_DIALECT_FALLBACK", &config.Engine.DialectFallback)
	envInt("ENGINE_MAX_STATEMENTS", &config.Engine.MaxStatements)
	envDuration("ENGINE_STATEMENT_TIMEOUT", &config.Engine.StatementTimeout)

	envBool("CHANGEFEED_ENABLED", &config.ChangeFeed.Enabled)
	envString("CHANGEFEED_QUEUE_TYPE", &config.ChangeFeed.QueueType)
	envInt("CHANGEFEED_QUEUE_BUFFER_SIZE", &config.ChangeFeed.QueueBufferSize)
	envInt("CHANGEFEED_BATCH_SIZE", &config.ChangeFeed.BatchSize)
	envInt("CHANGEFEED_RELAY_RATE", &config.ChangeFeed.RelayRate)
	envList("CHANGEFEED_KAFKA_BROKERS", &config.ChangeFeed.KafkaConfig.Brokers)
	envString("CHANGEFEED_KAFKA_TOPIC", &config.ChangeFeed.KafkaConfig.Topic)

	envString("SERVER_ADDR", &config.Server.Addr)

	return cm.apply(&config)
}

func (cm *ConfigManager) apply(config *InternalConfig) error {
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// validateConfig validates the configuration and returns an error if invalid.
// Store validation is delegated to the validator registered for the store type.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.Store.Type == "" {
		return fmt.Errorf("store.type is required")
	}

	validator, exists := GetValidator(config.Store.Type)
	if !exists {
		return fmt.Errorf("unsupported document store type: %s", config.Store.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	if config.Engine.MaxStatements < 0 {
		return fmt.Errorf("engine.max_statements must be non-negative")
	}
	if config.Engine.StatementTimeout < 0 {
		return fmt.Errorf("engine.statement_timeout must be non-negative")
	}

	if config.ChangeFeed.Enabled {
		switch config.ChangeFeed.QueueType {
		case "memory":
			if config.ChangeFeed.QueueBufferSize <= 0 {
				return fmt.Errorf("changefeed.queue_buffer_size must be greater than 0")
			}
		case "redis":
			if config.Store.Type != "redis" {
				return fmt.Errorf("changefeed.queue_type 'redis' requires store.type 'redis'")
			}
			if config.ChangeFeed.RedisKey == "" {
				return fmt.Errorf("changefeed.redis_key is required when queue_type is 'redis'")
			}
		case "kafka":
			if len(config.ChangeFeed.KafkaConfig.Brokers) == 0 {
				return fmt.Errorf("kafka_config.brokers is required when queue_type is 'kafka'")
			}
			if config.ChangeFeed.KafkaConfig.Topic == "" {
				return fmt.Errorf("kafka_config.topic is required when queue_type is 'kafka'")
			}
		default:
			return fmt.Errorf("changefeed.queue_type must be 'memory', 'redis', or 'kafka'")
		}
		if config.ChangeFeed.BatchSize <= 0 {
			return fmt.Errorf("changefeed.batch_size must be greater than 0")
		}
		if config.ChangeFeed.RelayRate <= 0 {
			return fmt.Errorf("changefeed.relay_rate must be greater than 0")
		}
	}

	if config.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	return nil
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = strings.Split(val, ",")
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
