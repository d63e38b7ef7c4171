// Package bootstrap builds the shared components of the service binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/trendrider/internal/blob"
	"github.com/cuongbtq/trendrider/internal/config"
	"github.com/cuongbtq/trendrider/internal/generation"
	"github.com/cuongbtq/trendrider/internal/quota"
	"github.com/cuongbtq/trendrider/internal/storage"
	"github.com/cuongbtq/trendrider/internal/worker"
	"github.com/cuongbtq/trendrider/shared/database"
	"github.com/cuongbtq/trendrider/shared/logger"
	"github.com/cuongbtq/trendrider/shared/rabbitmq"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// InitDatabase opens the configured database
func InitDatabase(cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, error) {
	return database.NewClient(&database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// InitStorage wraps the database and creates missing tables when asked to.
// SQLite databases are always migrated.
func InitStorage(ctx context.Context, cfg *config.DatabaseConfig, db *database.Client, logger *slog.Logger) (*storage.Storage, error) {
	s := storage.NewStorage(db.GetDB(), logger)
	if cfg.AutoMigrate || cfg.Driver == database.DriverSQLite {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// InitRabbitMQ initializes the RabbitMQ client
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, logger)
}

// BlobStore is the configured store plus the local directory to serve, if any.
type BlobStore struct {
	blob.Store
	MediaDir string
}

// InitBlobStore opens the filesystem or MinIO store.
func InitBlobStore(ctx context.Context, cfg *config.BlobConfig, logger *slog.Logger) (*BlobStore, error) {
	switch cfg.Driver {
	case config.BlobMinio:
		store, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			UseSSL:        cfg.Minio.UseSSL,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			PresignExpiry: cfg.Minio.PresignExpiry,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &BlobStore{Store: store}, nil
	case config.BlobFilesystem:
		store, err := blob.NewFileStore(cfg.BasePath, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return &BlobStore{Store: store, MediaDir: store.BasePath()}, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// InitGenerator picks the Gemini client or, outside production without a key, the mock.
func InitGenerator(cfg *config.Config, logger *slog.Logger) generation.Client {
	return generation.New(generation.GeminiOptions{
		APIKey:    cfg.Generation.APIKey,
		BaseURL:   cfg.Generation.BaseURL,
		Model:     cfg.Generation.Model,
		Timeout:   cfg.Generation.Timeout,
		RateLimit: cfg.Generation.RateLimit,
		RateBurst: cfg.Generation.RateBurst,
	}, cfg.App.Environment, logger)
}

// InitLedger builds the quota ledger with the configured free tier ceiling.
func InitLedger(cfg *config.QuotaConfig, store *storage.Storage, logger *slog.Logger) *quota.Ledger {
	return quota.NewLedger(store, cfg.MonthlyLimit, logger)
}

// InitWorker builds the bounded worker pool.
func InitWorker(cfg *config.WorkerConfig, store *storage.Storage, ledger *quota.Ledger, blobs blob.Store, gen generation.Client, logger *slog.Logger) *worker.Worker {
	return worker.NewWorker(&worker.Config{
		Logger:        logger,
		Store:         store,
		Ledger:        ledger,
		Blobs:         blobs,
		Generator:     gen,
		Concurrency:   cfg.Concurrency,
		QueueSize:     cfg.QueueSize,
		JobTimeout:    cfg.JobTimeout,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		SweepInterval: cfg.SweepInterval,
		StaleAfter:    cfg.StaleAfter,
	})
}
