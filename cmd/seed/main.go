package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cuongbtq/trendrider/internal/bootstrap"
	"github.com/cuongbtq/trendrider/internal/config"
	"github.com/cuongbtq/trendrider/internal/seed"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	effectID := flag.String("effect-id", "", "Toggle visibility of this effect instead of seeding")
	active := flag.Bool("active", true, "Visibility applied with -effect-id")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := bootstrap.InitLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

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

	if *effectID != "" {
		return seed.SetActive(ctx, store, *effectID, *active, appLogger.Logger)
	}
	return seed.Run(ctx, store, appLogger.Logger)
}
