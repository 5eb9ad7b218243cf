package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/order-worker/internal/catalogclient"
	"github.com/jcmexdev/order-worker/internal/config"
	"github.com/jcmexdev/order-worker/internal/coordinator"
	"github.com/jcmexdev/order-worker/internal/coordinator/runlog/sqlite"
	"github.com/jcmexdev/order-worker/internal/httpx"
	"github.com/jcmexdev/order-worker/internal/listener"
	"github.com/jcmexdev/order-worker/internal/orderstore"
	ordermongo "github.com/jcmexdev/order-worker/internal/orderstore/mongo"
	"github.com/jcmexdev/order-worker/internal/pkg/lock"
	"github.com/jcmexdev/order-worker/internal/pkg/mongodb"
	"github.com/jcmexdev/order-worker/internal/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("order worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Worker) error {
	shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis not reachable at startup, locks will fail until it is", "addr", cfg.Redis.Addr(), "error", err)
	}

	orders, closeOrders, err := openOrderStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeOrders()

	runs, err := sqlite.Open(cfg.RunLogPath)
	if err != nil {
		return err
	}
	defer runs.Close()

	catalog := catalogclient.New(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, catalogclient.RetryConfig{
		MaxAttempts: cfg.Catalog.RetryMaxAttempts,
		BaseDelay:   cfg.Catalog.RetryBackoff,
		MaxDelay:    cfg.Catalog.RetryMaxBackoff,
		Multiplier:  2.0,
	})

	pipelineCfg := coordinator.DefaultConfig()
	pipelineCfg.LockTTL = cfg.Lock.TTL
	pipelineCfg.LockMaxAttempts = cfg.Lock.MaxAttempts
	pipelineCfg.LockRetryInterval = cfg.Lock.RetryInterval
	pipeline := coordinator.New(lock.NewRedisLocker(rdb), catalog, orders, pipelineCfg,
		coordinator.WithRunLog(runs),
		coordinator.WithMetrics(metrics),
	)

	reader := listener.NewReader(listener.KafkaConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topic:             cfg.Kafka.OrdersTopic,
		GroupID:           cfg.Kafka.GroupID,
		MaxPollRecords:    cfg.Kafka.MaxPollRecords,
		AutoOffsetReset:   cfg.Kafka.AutoOffsetReset,
		SessionTimeout:    cfg.Kafka.SessionTimeout,
		HeartbeatInterval: cfg.Kafka.HeartbeatInterval,
		FetchMaxWait:      cfg.Kafka.FetchMaxWait,
	})

	listenerOpts := []listener.Option{listener.WithMetrics(metrics)}
	if cfg.Kafka.DeadLetterTopic != "" {
		writer := listener.NewWriter(cfg.Kafka.Brokers)
		defer writer.Close()
		listenerOpts = append(listenerOpts, listener.WithRedeliverer(
			listener.NewRedeliverer(writer, cfg.Kafka.OrdersTopic, cfg.Kafka.DeadLetterTopic, cfg.Kafka.MaxRedeliveries),
		))
	}
	l := listener.New(reader, pipeline, listener.Config{Concurrency: cfg.Kafka.Concurrency}, listenerOpts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(httpx.NewHandler(orders, runs), registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("order worker ops server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops server failed", "error", err)
		}
	}()

	slog.Info("order worker consuming",
		"topic", cfg.Kafka.OrdersTopic,
		"group", cfg.Kafka.GroupID,
		"concurrency", cfg.Kafka.Concurrency,
		"dead_letter_topic", cfg.Kafka.DeadLetterTopic,
	)
	runErr := l.Run(ctx)

	// Run returns after in-flight messages drained; only then close the reader.
	if err := reader.Close(); err != nil {
		slog.Error("kafka reader close error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server shutdown error", "error", err)
	}
	slog.Info("order worker stopped")
	return runErr
}

func openOrderStore(ctx context.Context, cfg config.Worker) (orderstore.Repository, func(), error) {
	if cfg.OrderStore == config.StoreMemory {
		slog.Warn("using in-memory order store, orders are lost on restart")
		return orderstore.NewMemory(), func() {}, nil
	}

	client, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	disconnect := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			slog.Error("mongodb disconnect error", "error", err)
		}
	}

	repo, err := ordermongo.New(ctx, client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.OrdersCollection))
	if err != nil {
		disconnect()
		return nil, nil, err
	}
	return repo, disconnect, nil
}
