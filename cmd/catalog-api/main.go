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

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/order-worker/internal/catalog-service/adapters/httpx"
	catalogmongo "github.com/jcmexdev/order-worker/internal/catalog-service/adapters/mongo"
	"github.com/jcmexdev/order-worker/internal/catalog-service/app"
	"github.com/jcmexdev/order-worker/internal/config"
	"github.com/jcmexdev/order-worker/internal/pkg/cache"
	"github.com/jcmexdev/order-worker/internal/pkg/mongodb"
	"github.com/jcmexdev/order-worker/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadCatalogAPI()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("failed to open catalog store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	svc := app.NewService(repo, cache.NewRedisCache(rdb, "catalog"), cfg.CacheTTL)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(httpx.NewHandler(svc)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("catalog api running", "addr", srv.Addr, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}

func openRepository(ctx context.Context, cfg config.CatalogAPI) (app.Repository, func(), error) {
	if cfg.Store == config.StoreMemory {
		slog.Info("serving the seeded in-memory catalog")
		return app.NewSeededMemoryRepository(time.Now().UTC()), func() {}, nil
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

	repo, err := catalogmongo.New(ctx, client.Database(cfg.Mongo.Database))
	if err != nil {
		disconnect()
		return nil, nil, err
	}
	return repo, disconnect, nil
}
