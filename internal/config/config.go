// Package config loads the binaries' settings from environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcmexdev/order-worker/internal/listener"
	"github.com/jcmexdev/order-worker/internal/pkg/mongodb"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	defaultMongoURI      = "mongodb://localhost:27017"
	defaultMongoDatabase = "ecommerce"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ValidationError lists every missing or invalid field.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

type KafkaConfig struct {
	Brokers           []string
	OrdersTopic       string
	GroupID           string
	MaxPollRecords    int
	Concurrency       int
	AutoOffsetReset   string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	FetchMaxWait      time.Duration
	// DeadLetterTopic enables redelivery when set.
	DeadLetterTopic string
	MaxRedeliveries int
}

type CatalogConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	RetryMaxBackoff  time.Duration
}

type LockConfig struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type MongoConfig struct {
	URI              string
	Database         string
	OrdersCollection string
}

// Worker configures cmd/order-worker.
type Worker struct {
	ServiceName  string
	LogLevel     string
	Port         string
	OrderStore   string
	RunLogPath   string
	OTLPEndpoint string

	Kafka   KafkaConfig
	Catalog CatalogConfig
	Lock    LockConfig
	Redis   RedisConfig
	Mongo   MongoConfig
}

// CatalogAPI configures cmd/catalog-api.
type CatalogAPI struct {
	ServiceName  string
	LogLevel     string
	Port         string
	Store        string
	CacheTTL     time.Duration
	OTLPEndpoint string

	Redis RedisConfig
	Mongo MongoConfig
}

func LoadWorker() (Worker, error) {
	return LoadWorkerFrom(os.LookupEnv)
}

func LoadWorkerFrom(lookup LookupFunc) (Worker, error) {
	e := &env{lookup: lookup}

	cfg := Worker{
		ServiceName:  e.str("OTEL_SERVICE_NAME", "order-worker"),
		LogLevel:     e.str("LOG_LEVEL", "info"),
		Port:         e.str("PORT", "8081"),
		OrderStore:   strings.ToLower(e.str("ORDER_STORE", StoreMongo)),
		RunLogPath:   e.str("RUNLOG_PATH", "./data/runlog.db"),
		OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Kafka: KafkaConfig{
			Brokers:           listener.ParseBrokers(e.str("KAFKA_BROKERS", "localhost:9092")),
			OrdersTopic:       e.str("KAFKA_ORDERS_TOPIC", "orders"),
			GroupID:           e.str("KAFKA_GROUP_ID", "order-worker"),
			MaxPollRecords:    e.integer("KAFKA_MAX_POLL_RECORDS", 10),
			Concurrency:       e.integer("KAFKA_LISTENER_CONCURRENCY", 3),
			AutoOffsetReset:   strings.ToLower(e.str("KAFKA_AUTO_OFFSET_RESET", "earliest")),
			SessionTimeout:    e.millis("KAFKA_SESSION_TIMEOUT_MS", 30000),
			HeartbeatInterval: e.millis("KAFKA_HEARTBEAT_INTERVAL_MS", 10000),
			FetchMaxWait:      e.millis("KAFKA_FETCH_MAX_WAIT_MS", 500),
			DeadLetterTopic:   e.str("KAFKA_DEAD_LETTER_TOPIC", ""),
			MaxRedeliveries:   e.integer("KAFKA_MAX_REDELIVERIES", 3),
		},
		Catalog: CatalogConfig{
			BaseURL:          e.str("EXTERNAL_API_BASE_URL", "http://localhost:8080"),
			Timeout:          e.millis("EXTERNAL_API_TIMEOUT_MS", 5000),
			RetryMaxAttempts: e.integer("EXTERNAL_API_RETRY_MAX_ATTEMPTS", 3),
			RetryBackoff:     e.millis("EXTERNAL_API_RETRY_BACKOFF_MS", 500),
			RetryMaxBackoff:  e.millis("EXTERNAL_API_RETRY_MAX_BACKOFF_MS", 5000),
		},
		Lock: LockConfig{
			TTL:           e.millis("REDIS_LOCK_TIMEOUT_MS", 30000),
			RetryInterval: e.millis("REDIS_LOCK_RETRY_INTERVAL_MS", 100),
			MaxAttempts:   e.integer("REDIS_LOCK_MAX_ATTEMPTS", 3),
		},
		Redis: e.redis(),
		Mongo: e.mongo(),
	}

	e.require(len(cfg.Kafka.Brokers) > 0, "KAFKA_BROKERS")
	e.require(cfg.Kafka.OrdersTopic != "", "KAFKA_ORDERS_TOPIC")
	e.require(cfg.Kafka.GroupID != "", "KAFKA_GROUP_ID")
	e.require(cfg.Kafka.MaxPollRecords > 0, "KAFKA_MAX_POLL_RECORDS")
	e.require(cfg.Kafka.Concurrency > 0, "KAFKA_LISTENER_CONCURRENCY")
	e.require(cfg.Kafka.AutoOffsetReset == "earliest" || cfg.Kafka.AutoOffsetReset == "latest", "KAFKA_AUTO_OFFSET_RESET")
	e.require(cfg.Kafka.MaxRedeliveries >= 0, "KAFKA_MAX_REDELIVERIES")
	e.require(cfg.Kafka.DeadLetterTopic != cfg.Kafka.OrdersTopic, "KAFKA_DEAD_LETTER_TOPIC")
	e.require(isHTTPURL(cfg.Catalog.BaseURL), "EXTERNAL_API_BASE_URL")
	e.require(cfg.Catalog.Timeout > 0, "EXTERNAL_API_TIMEOUT_MS")
	e.require(cfg.Catalog.RetryMaxAttempts > 0, "EXTERNAL_API_RETRY_MAX_ATTEMPTS")
	e.require(cfg.Catalog.RetryMaxBackoff >= cfg.Catalog.RetryBackoff, "EXTERNAL_API_RETRY_MAX_BACKOFF_MS")
	e.require(cfg.Lock.TTL > 0, "REDIS_LOCK_TIMEOUT_MS")
	e.require(cfg.Lock.MaxAttempts > 0, "REDIS_LOCK_MAX_ATTEMPTS")
	e.require(cfg.OrderStore == StoreMongo || cfg.OrderStore == StoreMemory, "ORDER_STORE")

	return cfg, e.err()
}

func LoadCatalogAPI() (CatalogAPI, error) {
	return LoadCatalogAPIFrom(os.LookupEnv)
}

func LoadCatalogAPIFrom(lookup LookupFunc) (CatalogAPI, error) {
	e := &env{lookup: lookup}

	cfg := CatalogAPI{
		ServiceName:  e.str("OTEL_SERVICE_NAME", "catalog-api"),
		LogLevel:     e.str("LOG_LEVEL", "info"),
		Port:         e.str("PORT", "8080"),
		Store:        strings.ToLower(e.str("CATALOG_STORE", StoreMongo)),
		CacheTTL:     e.millis("CATALOG_CACHE_TTL_MS", 60000),
		OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Redis:        e.redis(),
		Mongo:        e.mongo(),
	}

	e.require(cfg.Store == StoreMongo || cfg.Store == StoreMemory, "CATALOG_STORE")
	e.require(cfg.CacheTTL >= 0, "CATALOG_CACHE_TTL_MS")

	return cfg, e.err()
}

// env reads typed values and remembers every key that failed to parse or
// validate.
type env struct {
	lookup  LookupFunc
	invalid []string
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e *env) integer(key string, fallback int) int {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return n
}

func (e *env) millis(key string, fallback int) time.Duration {
	return time.Duration(e.integer(key, fallback)) * time.Millisecond
}

func (e *env) redis() RedisConfig {
	return RedisConfig{
		Host:     e.str("REDIS_HOST", "localhost"),
		Port:     e.integer("REDIS_PORT", 6379),
		Password: e.str("REDIS_PASSWORD", ""),
		DB:       e.integer("REDIS_DB", 0),
	}
}

func (e *env) mongo() MongoConfig {
	uri := e.str("MONGODB_URI", defaultMongoURI)
	return MongoConfig{
		URI:              uri,
		Database:         e.str("MONGODB_DATABASE", mongodb.DatabaseName(uri, defaultMongoDatabase)),
		OrdersCollection: e.str("MONGODB_ORDERS_COLLECTION", "orders"),
	}
}

func (e *env) require(ok bool, key string) {
	if !ok {
		e.invalid = append(e.invalid, key)
	}
}

func (e *env) err() error {
	if len(e.invalid) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(e.invalid))
	fields := make([]string, 0, len(e.invalid))
	for _, f := range e.invalid {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return &ValidationError{fields: fields}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
