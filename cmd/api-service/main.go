package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/trendrider/internal/api/handler"
	"github.com/cuongbtq/trendrider/internal/api/router"
	"github.com/cuongbtq/trendrider/internal/bootstrap"
	"github.com/cuongbtq/trendrider/internal/config"
	"github.com/cuongbtq/trendrider/internal/dispatcher"
	"github.com/cuongbtq/trendrider/internal/worker"
	"github.com/cuongbtq/trendrider/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("scheduler", cfg.Scheduler.Mode),
	)

	ctx := context.Background()

	dbClient, err := bootstrap.InitDatabase(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	store, err := bootstrap.InitStorage(ctx, &cfg.Database, dbClient, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	blobs, err := bootstrap.InitBlobStore(ctx, &cfg.Blob, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	ledger := bootstrap.InitLedger(&cfg.Quota, store, appLogger.Logger)

	// Scheduler: either the in-process pool or the RabbitMQ queue
	var (
		scheduler    dispatcher.Scheduler
		pool         *worker.Worker
		rabbitClient *rabbitmq.Client
	)
	switch cfg.Scheduler.Mode {
	case config.SchedulerRabbitMQ:
		rabbitClient, err = bootstrap.InitRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		scheduler = dispatcher.NewQueueScheduler(rabbitClient)
		appLogger.Info("RabbitMQ connection established")
	default:
		generator := bootstrap.InitGenerator(cfg, appLogger.Logger)
		pool = bootstrap.InitWorker(&cfg.Worker, store, ledger, blobs, generator, appLogger.Logger)
		pool.Start(ctx)
		scheduler = pool
	}

	var queueHealth handler.HealthChecker
	if rabbitClient != nil {
		queueHealth = rabbitClient
	}

	service := dispatcher.NewService(store, ledger, scheduler, blobs, appLogger.Logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:         appLogger.Logger,
		Store:          store,
		Jobs:           service,
		Usage:          ledger,
		Blobs:          blobs,
		Health:         dbClient,
		Queue:          queueHealth,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ServiceName:    cfg.App.Name,
	}, router.Options{MediaDir: blobs.MediaDir})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// no new submissions can arrive now; drain the hosted pool
	if pool != nil {
		if err := pool.Stop(shutdownCtx); err != nil {
			appLogger.Warn("Worker pool did not drain", slog.Any("error", err))
		}
	}

	appLogger.Info("Server shutdown complete")
	return nil
}
