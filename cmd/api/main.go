package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/training/internal/api"
	"example.com/training/internal/auth"
	"example.com/training/internal/config"
	"example.com/training/internal/domain"
	"example.com/training/internal/logging"
	"example.com/training/internal/outbox"
	"example.com/training/internal/persistence/memory"
	"example.com/training/internal/persistence/postgres"
	"example.com/training/internal/persistence/redisstore"
	httptransport "example.com/training/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %s", err)
	}

	logger := logging.Setup(logging.Params{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.ToStdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
		MaxSizeMB:     cfg.Log.MaxSizeMB,
		MaxBackups:    cfg.Log.MaxBackups,
		Service:       "training-api",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.StoreBackend == config.BackendPostgres || cfg.StatsBackend == config.BackendPostgres {
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatalf("failed to connect to postgres: %s", err)
		}
		defer pool.Close()
	}

	var (
		catalog  domain.CatalogRepository
		finished domain.FinishedRepository
		notifier domain.Notifier
		stats    domain.StatsRepository
		mem      *memory.Store
		repo     *postgres.Repository
	)
	if pool != nil {
		repo = postgres.NewRepository(pool)
	}
	if cfg.StoreBackend == config.BackendMemory || cfg.StatsBackend == config.BackendMemory {
		mem = memory.NewStore()
		mem.SeedDefaults()
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		catalog, finished, notifier = repo, repo, repo
	default:
		catalog, finished, notifier = mem, mem, mem
	}

	switch cfg.StatsBackend {
	case config.BackendPostgres:
		stats = repo
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis ping failed, stats updates will report failures until it recovers")
		}
		stats = redisstore.NewStatsStore(client)
	default:
		stats = mem
	}

	var dispatcher *outbox.Dispatcher
	if cfg.StoreBackend == config.BackendPostgres {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.WithField("component", "outbox")))
		go dispatcher.Start(ctx)
	}

	service := domain.NewService(catalog, finished, stats, notifier,
		domain.WithLocation(cfg.Location),
		domain.WithLogger(logger.WithField("component", "domain")),
	)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	api.NewHandler(service).RegisterRoutes(router)
	router.Use(
		httptransport.PanicRecovery(logger),
		httptransport.LogRequest(logger),
		httptransport.Cors(cfg.CORSOrigin),
	)

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), authMiddleware.Wrap(router))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.HTTPAddress,
			"store":   cfg.StoreBackend,
			"stats":   cfg.StatsBackend,
		}).Info("training api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %s", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
