// cmd/orchestrator/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"campaign-writer/internal/api"
	awsclients "campaign-writer/internal/common/aws"
	"campaign-writer/internal/common/camunda"
	"campaign-writer/internal/common/config"
	"campaign-writer/internal/common/database"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/common/observability"
	"campaign-writer/internal/history"
	"campaign-writer/internal/orchestration/cache"
	"campaign-writer/internal/orchestration/facade"
	"campaign-writer/internal/orchestration/gate"
	"campaign-writer/internal/orchestration/llm"
	"campaign-writer/internal/orchestration/router"
	"campaign-writer/internal/orchestration/workflow"
	"campaign-writer/internal/review"
	"campaign-writer/internal/tenant"
	gc "campaign-writer/internal/workers/ai-generation/generate-content"
	"campaign-writer/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting campaign writer orchestrator...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Telemetry.ServiceName, cfg.Telemetry.TraceSampleRatio, log)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Redis (L2 cache, usage counters) ---
	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL (tenant profiles) ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Elasticsearch (generation history) ---
	var historyIndexer *history.Indexer
	if cfg.Database.Elasticsearch.Enabled() {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			return database.PingElasticsearch(ctx, esClient)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		historyIndexer = history.NewIndexer(esClient, cfg.Database.Elasticsearch.HistoryIndex, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Model clients and templates ---
	modelRegistry, err := llm.NewRegistryFromConfig(cfg.Models)
	if err != nil {
		zapLog.Fatal("model registry failed", zap.Error(err))
	}
	templates, err := registry.LoadOrDefault(cfg.Orchestration.RegistryPath)
	if err != nil {
		zapLog.Fatal("workflow registry failed", zap.Error(err))
	}

	// --- Generation cache ---
	memCache, err := cache.NewMemoryCache(cfg.Orchestration.CacheMaxCost)
	if err != nil {
		zapLog.Fatal("memory cache failed", zap.Error(err))
	}
	defer memCache.Close()
	stores := []cache.Store{memCache}
	if rdb != nil {
		stores = append(stores, cache.NewRedisCache(rdb.Client, rdb.KeyPrefix))
	}
	generationCache := cache.NewTiered(time.Duration(cfg.Orchestration.CacheTTL)*time.Second, log, stores...)

	// --- Reviewer notifications ---
	var notifier facade.ReviewNotifier
	n := cfg.Notifications
	if n.SES.Enabled || n.SNS.Enabled {
		clients, err := awsclients.NewClients(ctx, n.AWS.Region, n.SES.Enabled, n.SNS.Enabled)
		if err != nil {
			zapLog.Fatal("aws clients failed", zap.Error(err))
		}
		var sesSvc review.SESService
		var snsSvc review.SNSService
		if clients.SES != nil {
			sesSvc = clients.SES
		}
		if clients.SNS != nil {
			snsSvc = clients.SNS
		}
		notifier = review.NewNotifier(n, sesSvc, snsSvc, log)
	}

	// --- Orchestrator ---
	orchestrator := facade.New(facade.Dependencies{
		Router: router.New(modelRegistry),
		Executor: workflow.NewExecutor(modelRegistry, templates, workflow.Config{
			CallTimeout:            config.GetDuration(cfg.Orchestration.ModelCallTimeout),
			RetryBackoff:           config.GetDuration(cfg.Orchestration.RetryBackoff),
			LowConfidenceThreshold: cfg.Orchestration.LowConfidenceThreshold,
		}, obs, log),
		Gate:     gate.New(gate.Config{DefaultFooter: cfg.Orchestration.DefaultFooter}, obs, log),
		Cache:    generationCache,
		Notifier: notifier,
	}, facade.Config{
		MaxConcurrentGenerations: int64(cfg.Orchestration.MaxConcurrentGenerations),
		PendingTTL:               time.Duration(cfg.Orchestration.PendingTTL) * time.Second,
	}, obs, log)

	tenants := newTenantService(pg, rdb, cfg.Tenants, log)

	// --- Zeebe job workers ---
	var zeebeClient zbc.Client
	var jobWorkers []worker.JobWorker
	if cfg.Camunda.Enabled {
		zeebeClient, err = camunda.Connect(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		wcfg := config.GetWorkerConfig(cfg, gc.TaskType)
		handler := gc.NewHandler(gc.LoadConfig(wcfg), orchestrator, tenants, log)
		if jw := camunda.StartWorker(zeebeClient, gc.TaskType, wcfg, handler, log); jw != nil {
			jobWorkers = append(jobWorkers, jw)
		}
	}

	// --- HTTP API ---
	opts := api.Options{
		Generator:   orchestrator,
		Tenants:     tenants,
		MetricsPath: cfg.Telemetry.MetricsPath,
		Logger:      log,
	}
	if historyIndexer != nil {
		opts.History = historyIndexer
	}
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewServer(opts).Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP API listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, jw := range jobWorkers {
		jw.Close()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if pending := orchestrator.PendingCount(); pending > 0 {
		zapLog.Warn("Discarding results still awaiting review", zap.Int("pending", pending))
	}

	zapLog.Info("Orchestrator stopped gracefully")
}

func newTenantService(pg *database.PostgresClient, rdb *database.RedisClient, cfg config.TenantConfig, log logger.Logger) *tenant.Service {
	var db *sql.DB
	var counters redis.Cmdable
	prefix := ""
	if pg != nil {
		db = pg.DB
	}
	if rdb != nil {
		counters = rdb.Client
		prefix = rdb.KeyPrefix
	}
	return tenant.NewService(db, counters, prefix, cfg, log)
}
