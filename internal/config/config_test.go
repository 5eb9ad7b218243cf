package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	cfg, err := LoadWorkerFrom(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.OrdersTopic)
	assert.Equal(t, "order-worker", cfg.Kafka.GroupID)
	assert.Equal(t, 10, cfg.Kafka.MaxPollRecords)
	assert.Equal(t, 3, cfg.Kafka.Concurrency)
	assert.Equal(t, "earliest", cfg.Kafka.AutoOffsetReset)
	assert.Equal(t, 30*time.Second, cfg.Kafka.SessionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Kafka.HeartbeatInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Kafka.FetchMaxWait)
	assert.Empty(t, cfg.Kafka.DeadLetterTopic)
	assert.Equal(t, 3, cfg.Kafka.MaxRedeliveries)

	assert.Equal(t, "http://localhost:8080", cfg.Catalog.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, 3, cfg.Catalog.RetryMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Catalog.RetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.Catalog.RetryMaxBackoff)

	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.RetryInterval)
	assert.Equal(t, 3, cfg.Lock.MaxAttempts)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "ecommerce", cfg.Mongo.Database)
	assert.Equal(t, "orders", cfg.Mongo.OrdersCollection)
	assert.Equal(t, StoreMongo, cfg.OrderStore)
}

func TestLoadWorkerOverrides(t *testing.T) {
	cfg, err := LoadWorkerFrom(mapLookup(map[string]string{
		"KAFKA_BROKERS":              "k1:9092, k2:9092",
		"KAFKA_LISTENER_CONCURRENCY": "8",
		"KAFKA_DEAD_LETTER_TOPIC":    "orders-dlq",
		"EXTERNAL_API_BASE_URL":      "http://catalog:8080",
		"REDIS_HOST":                 "redis",
		"REDIS_PORT":                 "6380",
		"MONGODB_URI":                "mongodb://mongo:27017/shop",
		"ORDER_STORE":                "MEMORY",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Kafka.Concurrency)
	assert.Equal(t, "orders-dlq", cfg.Kafka.DeadLetterTopic)
	assert.Equal(t, "http://catalog:8080", cfg.Catalog.BaseURL)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr())
	assert.Equal(t, "shop", cfg.Mongo.Database)
	assert.Equal(t, StoreMemory, cfg.OrderStore)
}

func TestLoadWorkerCollectsEveryInvalidField(t *testing.T) {
	_, err := LoadWorkerFrom(mapLookup(map[string]string{
		"KAFKA_BROKERS":              " , ",
		"KAFKA_LISTENER_CONCURRENCY": "zero",
		"KAFKA_AUTO_OFFSET_RESET":    "middle",
		"EXTERNAL_API_BASE_URL":      "catalog:8080",
		"REDIS_LOCK_MAX_ATTEMPTS":    "0",
	}))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{
		"KAFKA_BROKERS",
		"KAFKA_LISTENER_CONCURRENCY",
		"KAFKA_AUTO_OFFSET_RESET",
		"EXTERNAL_API_BASE_URL",
		"REDIS_LOCK_MAX_ATTEMPTS",
	}, verr.Fields())
}

func TestLoadWorkerRejectsDeadLetterEqualToOrdersTopic(t *testing.T) {
	_, err := LoadWorkerFrom(mapLookup(map[string]string{"KAFKA_DEAD_LETTER_TOPIC": "orders"}))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"KAFKA_DEAD_LETTER_TOPIC"}, verr.Fields())
}

func TestLoadCatalogAPI(t *testing.T) {
	cfg, err := LoadCatalogAPIFrom(mapLookup(map[string]string{"MONGODB_DATABASE": "catalog"}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "catalog", cfg.Mongo.Database)
	assert.Equal(t, StoreMongo, cfg.Store)

	_, err = LoadCatalogAPIFrom(mapLookup(map[string]string{"CATALOG_STORE": "postgres"}))
	assert.Error(t, err)
}
