package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rzpsarthak13/docsql/internal/docstore"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

func TestDefaultsAreValid(t *testing.T) {
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromYAML(nil))

	cfg := cm.GetConfig()
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.True(t, cfg.Engine.DialectFallback)
	assert.False(t, cfg.Engine.PermissiveJoins)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFromYAML(t *testing.T) {
	data := []byte(`
store:
  type: redis
  redis_config:
    endpoints: ["cache:6379"]
    db: 2
    pool_size: 20
    key_prefix: app
engine:
  permissive_joins: true
  statement_timeout: 5s
changefeed:
  enabled: true
  queue_type: redis
  batch_size: 10
  relay_rate: 5
`)
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromYAML(data))

	cfg := cm.GetConfig()
	assert.Equal(t, []string{"cache:6379"}, cfg.Store.RedisConfig.Endpoints)
	assert.Equal(t, 2, cfg.Store.RedisConfig.DB)
	assert.Equal(t, "app", cfg.Store.RedisConfig.KeyPrefix)
	assert.True(t, cfg.Engine.PermissiveJoins)
	assert.True(t, cfg.Engine.DialectFallback, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Engine.StatementTimeout)
	assert.Equal(t, "docsql:changefeed", cfg.ChangeFeed.RedisKey)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown store", "store:\n  type: cassandra\n", "unsupported document store type"},
		{"redis queue without redis store", "changefeed:\n  enabled: true\n  queue_type: redis\n", "requires store.type 'redis'"},
		{"bad queue type", "changefeed:\n  enabled: true\n  queue_type: sqs\n", "changefeed.queue_type"},
		{"kafka without topic", "changefeed:\n  enabled: true\n  queue_type: kafka\n  kafka_config:\n    topic: \"\"\n", "kafka_config.topic"},
		{"negative statements", "engine:\n  max_statements: -1\n", "engine.max_statements"},
		{"store specific", "store:\n  type: mysql\n", "mysql_config.username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.NewConfigManager().LoadFromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"engine":{"max_statements":7}}`), 0o600))
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromFile(jsonPath))
	assert.Equal(t, 7, cm.GetConfig().Engine.MaxStatements)

	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o600))
	assert.ErrorContains(t, cm.LoadFromFile(txtPath), "unsupported config file format")
}

func TestLoadFromEnvOverridesCurrentConfig(t *testing.T) {
	cm := registry.NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte("engine:\n  max_statements: 3\n")))

	t.Setenv("DOCSQL_ENGINE_PERMISSIVE_JOINS", "1")
	t.Setenv("DOCSQL_SERVER_ADDR", ":9999")
	t.Setenv("DOCSQL_ENGINE_STATEMENT_TIMEOUT", "250ms")
	require.NoError(t, cm.LoadFromEnv())

	cfg := cm.GetConfig()
	assert.Equal(t, 3, cfg.Engine.MaxStatements)
	assert.True(t, cfg.Engine.PermissiveJoins)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.StatementTimeout)
}

func TestRegisteredValidatorTypes(t *testing.T) {
	assert.Subset(t, registry.RegisteredValidatorTypes(), []string{"memory", "redis", "dynamodb", "mysql"})
}
