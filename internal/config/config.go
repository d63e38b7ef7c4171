package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// EnvPrefix prefixes every environment override, e.g. TRENDRIDER_GEMINI_API_KEY.
	EnvPrefix = "trendrider"
)

// Scheduler modes.
const (
	SchedulerInProcess = "inprocess"
	SchedulerRabbitMQ  = "rabbitmq"
)

// Blob drivers.
const (
	BlobFilesystem = "filesystem"
	BlobMinio      = "minio"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Quota      QuotaConfig      `yaml:"quota"`
	Generation GenerationConfig `yaml:"generation"`
	Blob       BlobConfig       `yaml:"blob"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	QueueSize       int           `yaml:"queue_size"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SchedulerConfig selects how the API hands jobs to workers.
type SchedulerConfig struct {
	Mode string `yaml:"mode"` // inprocess, rabbitmq
}

// QuotaConfig holds the free tier ceiling.
type QuotaConfig struct {
	MonthlyLimit int `yaml:"monthly_limit"`
}

// GenerationConfig holds image provider settings
type GenerationConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
}

// BlobConfig selects and configures the blob store.
type BlobConfig struct {
	Driver        string      `yaml:"driver"` // filesystem, minio
	BasePath      string      `yaml:"base_path"`
	PublicBaseURL string      `yaml:"public_base_url"`
	Minio         MinioConfig `yaml:"minio"`
}

// MinioConfig holds S3 compatible storage settings
type MinioConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	UseSSL        bool          `yaml:"use_ssl"`
	Bucket        string        `yaml:"bucket"`
	Region        string        `yaml:"region"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// envOverrides are read from TRENDRIDER_* variables. Empty values leave the
// file setting untouched.
type envOverrides struct {
	Environment      string `envconfig:"ENVIRONMENT"`
	DatabaseDriver   string `envconfig:"DATABASE_DRIVER"`
	DatabaseHost     string `envconfig:"DATABASE_HOST"`
	DatabaseName     string `envconfig:"DATABASE_NAME"`
	DatabaseUser     string `envconfig:"DATABASE_USER"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	RabbitMQHost     string `envconfig:"RABBITMQ_HOST"`
	RabbitMQUser     string `envconfig:"RABBITMQ_USER"`
	RabbitMQPassword string `envconfig:"RABBITMQ_PASSWORD"`
	SchedulerMode    string `envconfig:"SCHEDULER_MODE"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string `envconfig:"GEMINI_MODEL"`
	MinioEndpoint    string `envconfig:"MINIO_ENDPOINT"`
	MinioAccessKey   string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey   string `envconfig:"MINIO_SECRET_KEY"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&c.App.Environment, env.Environment)
	override(&c.Database.Driver, env.DatabaseDriver)
	override(&c.Database.Host, env.DatabaseHost)
	override(&c.Database.Database, env.DatabaseName)
	override(&c.Database.User, env.DatabaseUser)
	override(&c.Database.Password, env.DatabasePassword)
	override(&c.RabbitMQ.Host, env.RabbitMQHost)
	override(&c.RabbitMQ.User, env.RabbitMQUser)
	override(&c.RabbitMQ.Password, env.RabbitMQPassword)
	override(&c.Scheduler.Mode, env.SchedulerMode)
	override(&c.Generation.APIKey, env.GeminiAPIKey)
	override(&c.Generation.Model, env.GeminiModel)
	override(&c.Blob.Minio.Endpoint, env.MinioEndpoint)
	override(&c.Blob.Minio.AccessKey, env.MinioAccessKey)
	override(&c.Blob.Minio.SecretKey, env.MinioSecretKey)
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = SchedulerInProcess
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = BlobFilesystem
	}
	if c.Quota.MonthlyLimit == 0 {
		c.Quota.MonthlyLimit = 5
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	switch c.Scheduler.Mode {
	case SchedulerInProcess:
		return c.validateWorker()
	case SchedulerRabbitMQ:
		return c.validateRabbitMQ()
	default:
		return fmt.Errorf("unknown scheduler mode %q (must be %s or %s)", c.Scheduler.Mode, SchedulerInProcess, SchedulerRabbitMQ)
	}
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}
	return c.validateWorker()
}

func (c *Config) validateShared() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.Quota.MonthlyLimit < 0 {
		return errors.New("quota monthly_limit must not be negative")
	}

	if c.IsProduction() && c.Generation.APIKey == "" {
		return errors.New("generation api_key is required in production")
	}

	switch c.Blob.Driver {
	case BlobFilesystem:
		if c.Blob.BasePath == "" {
			return errors.New("blob base_path is required for the filesystem driver")
		}
	case BlobMinio:
		if c.Blob.Minio.Endpoint == "" || c.Blob.Minio.Bucket == "" {
			return errors.New("blob minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
		return nil
	case "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Database.Host == "" {
		return errors.New("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return errors.New("database name is required")
	}
	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return errors.New("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return errors.New("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return errors.New("rabbitmq queue name is required")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}

	if c.Worker.QueueSize <= 0 {
		return errors.New("worker queue_size must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return errors.New("worker job_timeout must be greater than 0")
	}

	if c.Worker.MaxAttempts <= 0 {
		return errors.New("worker max_attempts must be greater than 0")
	}

	if c.Worker.StaleAfter > 0 && c.Worker.StaleAfter <= c.Worker.JobTimeout {
		return errors.New("worker stale_after must exceed job_timeout")
	}
	return nil
}
