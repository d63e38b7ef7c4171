package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "localhost", cfg.Database.Host)
			assert.Equal(t, 5432, cfg.Database.Port)
			assert.Equal(t, "effects_exchange", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, "effect_jobs", cfg.RabbitMQ.Queue.Name)
			assert.Equal(t, 8, cfg.RabbitMQ.Consumer.PrefetchCount)
			assert.Equal(t, 3*time.Minute, cfg.Worker.JobTimeout)
			assert.Equal(t, 10*time.Minute, cfg.Worker.StaleAfter)
			assert.Equal(t, 2.0, cfg.Generation.RateLimit)
			assert.Equal(t, SchedulerInProcess, cfg.Scheduler.Mode)
			assert.Equal(t, 5, cfg.Quota.MonthlyLimit)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, SchedulerInProcess, cfg.Scheduler.Mode)
	assert.Equal(t, BlobFilesystem, cfg.Blob.Driver)
	assert.Equal(t, 5, cfg.Quota.MonthlyLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	require.NoError(t, cfg.ValidateAPIConfig())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRENDRIDER_GEMINI_API_KEY", "secret-key")
	t.Setenv("TRENDRIDER_DATABASE_PASSWORD", "from-env")
	t.Setenv("TRENDRIDER_SCHEDULER_MODE", "rabbitmq")
	t.Setenv("TRENDRIDER_ENVIRONMENT", "")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.Generation.APIKey)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, SchedulerRabbitMQ, cfg.Scheduler.Mode)
	assert.Equal(t, "development", cfg.App.Environment, "empty variables keep the file value")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	return cfg
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"missing database host", func(c *Config) { c.Database.Host = "" }, "database host is required"},
		{"sqlite needs no host", func(c *Config) {
			c.Database.Driver = "sqlite"
			c.Database.Host = ""
		}, ""},
		{"unknown scheduler", func(c *Config) { c.Scheduler.Mode = "cron" }, "unknown scheduler mode"},
		{"rabbitmq mode checks broker", func(c *Config) {
			c.Scheduler.Mode = SchedulerRabbitMQ
			c.RabbitMQ.Host = ""
		}, "rabbitmq host is required"},
		{"inprocess mode ignores broker", func(c *Config) { c.RabbitMQ.Host = "" }, ""},
		{"inprocess mode checks pool", func(c *Config) { c.Worker.Concurrency = 0 }, "worker concurrency"},
		{"production requires api key", func(c *Config) { c.App.Environment = "production" }, "api_key is required"},
		{"minio needs bucket", func(c *Config) { c.Blob.Driver = BlobMinio }, "minio endpoint and bucket"},
		{"unknown blob driver", func(c *Config) { c.Blob.Driver = "ftp" }, "unknown blob driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing queue", func(c *Config) { c.RabbitMQ.Queue.Name = "" }, "rabbitmq queue name is required"},
		{"zero max attempts", func(c *Config) { c.Worker.MaxAttempts = 0 }, "max_attempts"},
		{"stale window inside timeout", func(c *Config) { c.Worker.StaleAfter = time.Minute }, "stale_after must exceed job_timeout"},
		{"zero queue size", func(c *Config) { c.Worker.QueueSize = 0 }, "queue_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}
