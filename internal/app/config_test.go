package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "ID_COUNTER", "KAFKA_BROKERS", "RATE_LIMIT_PER_MINUTE", "APP_ADDR", "IDEMPOTENCY_TTL", "APP_ENV"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreBackend)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.False(t, cfg.KafkaEnabled())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_ORDER_TOPIC", "orders")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.KafkaEnabled())
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "orders", cfg.KafkaOrderTopic)
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{StoreBackend: "memory", IDCounter: "memory", RateLimitPerMinute: 60}
	}

	cfg := base()
	cfg.StoreBackend = " Postgres "
	cfg.PGDSN = "postgres://localhost/replenish"
	require.Error(t, cfg.Validate())
	require.Equal(t, StorePostgres, cfg.StoreBackend)
	cfg.IDCounter = "redis"
	cfg.RedisAddr = "localhost:6379"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.StoreBackend = "postgres"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.StoreBackend = "sqlite"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.IDCounter = "redis"
	require.Error(t, cfg.Validate())
	cfg.RedisAddr = "localhost:6379"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.RateLimitPerMinute = 0
	require.Error(t, cfg.Validate())
}

func TestConfigValidateWorker(t *testing.T) {
	cfg := Config{StoreBackend: StoreMemory, IDCounter: "memory", RateLimitPerMinute: 60}
	require.Error(t, cfg.ValidateWorker())

	cfg.RedisAddr = "localhost:6379"
	require.ErrorContains(t, cfg.ValidateWorker(), "STORE_BACKEND=postgres")

	cfg.StoreBackend = StorePostgres
	cfg.PGDSN = "postgres://localhost/replenish"
	cfg.IDCounter = "redis"
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateWorker())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
