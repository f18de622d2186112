// Command httpd runs the assessment worker: the dispatch API plus the
// bounded worker pool that processes queued jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmiprep/assessment-worker/internal/api"
	"github.com/mmiprep/assessment-worker/internal/assessor"
	"github.com/mmiprep/assessment-worker/internal/blobstore"
	"github.com/mmiprep/assessment-worker/internal/config"
	"github.com/mmiprep/assessment-worker/internal/database"
	"github.com/mmiprep/assessment-worker/internal/logging"
	"github.com/mmiprep/assessment-worker/internal/pipeline"
	"github.com/mmiprep/assessment-worker/internal/telemetry"
	"github.com/mmiprep/assessment-worker/internal/transcriber"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "assessment-worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting assessment worker",
		"version", cfg.Service.Version,
		"port", cfg.Service.Port,
		"concurrency", cfg.Service.Concurrency,
	)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.Database)

	jobRepo := database.NewJobRepository(db)
	attemptRepo := database.NewAttemptRepository(db)
	catalogRepo := database.NewCatalogRepository(db)

	metrics := telemetry.New()

	stateMachine := pipeline.NewStateMachine(
		jobRepo,
		attemptRepo,
		catalogRepo,
		blobstore.NewClient(cfg.Blob),
		transcriber.NewClient(cfg.Transcriber),
		assessor.NewClient(cfg.Assessor),
		metrics,
		logger,
		pipeline.Options{
			BlobTimeout:        cfg.Blob.Timeout,
			TranscriberTimeout: cfg.Transcriber.Timeout,
			TranscriberRPS:     cfg.Transcriber.RPS,
			AssessorTimeout:    cfg.Assessor.Timeout,
			AssessorRPS:        cfg.Assessor.RPS,
		},
	)

	lease := buildLease(cfg, jobRepo, logger)
	dispatcher := pipeline.NewDispatcher(stateMachine, lease, metrics, logger, pipeline.DispatcherConfig{
		Concurrency: cfg.Service.Concurrency,
		QueueSize:   cfg.Service.QueueSize,
		JobTimeout:  cfg.Service.JobTimeout,
	})

	handler := api.NewHandler(dispatcher, db, logger)
	server := api.NewServer(handler, api.ServerConfig{Port: cfg.Service.Port, Debug: cfg.Service.Debug}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP shutdown did not finish cleanly", "error", err)
	}
	dispatcher.Stop()
	logger.Info("Assessment worker stopped")
	return nil
}

// buildLease prefers the Redis claim lease; when Redis is unreachable the
// store's conditional status update guards re-entrant dispatch instead.
func buildLease(cfg *config.Config, jobRepo *database.JobRepository, logger logging.Logger) pipeline.Lease {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, falling back to store-side job claim", "error", err)
		_ = client.Close()
		return pipeline.NewStoreLease(jobRepo)
	}

	logger.Info("Connected to Redis", "address", cfg.Redis.Address)
	return pipeline.NewRedisLease(client, cfg.Redis.LeaseTTL, logger)
}
