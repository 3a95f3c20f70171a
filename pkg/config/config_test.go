package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "billrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BILLRUN_CONFIG_FILE", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "0 0 1 * *", cfg.Billing.Schedule)
	assert.Equal(t, 16, cfg.Billing.MaxConcurrency)
	assert.Equal(t, 50, cfg.Billing.HistorySize)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "simulated", cfg.Gateway.Type)
	assert.Empty(t, cfg.Lock.URL)
	assert.Equal(t, "billrun:run-lock", cfg.Lock.Key)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9000"
  shutdown_timeout: 5s
billing:
  schedule: "*/5 * * * *"
  max_concurrency: 4
  run_on_start: true
storage:
  type: sqlite
  sqlite_path: /tmp/billrun-test.db
  seed_customers: 3
lock:
  url: redis://localhost:6379/2
  ttl: 2m
gateway:
  type: http
  url: https://payments.example.com
  api_key: key
observability:
  log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset fields keep their defaults")
	assert.Equal(t, "*/5 * * * *", cfg.Billing.Schedule)
	assert.Equal(t, 4, cfg.Billing.MaxConcurrency)
	assert.True(t, cfg.Billing.RunOnStart)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/billrun-test.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 3, cfg.Storage.SeedCustomers)
	assert.Equal(t, 10, cfg.Storage.SeedInvoicesPerCustomer)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Lock.URL)
	assert.Equal(t, 2*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "billrun:run-lock", cfg.Lock.Key)
	assert.Equal(t, "http", cfg.Gateway.Type)
	assert.Equal(t, "https://payments.example.com", cfg.Gateway.URL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: "9000"
storage:
  type: sqlite
`)
	t.Setenv("BILLRUN_PORT", "9100")
	t.Setenv("BILLRUN_STORAGE_TYPE", "postgres")
	t.Setenv("BILLRUN_POSTGRES_URL", "postgres://localhost/billrun")
	t.Setenv("BILLRUN_POSTGRES_REPLICA_URLS", "postgres://r1/billrun, postgres://r2/billrun,")
	t.Setenv("BILLRUN_BILLING_RUN_TIMEOUT", "10m")
	t.Setenv("BILLRUN_GATEWAY_SUCCESS_RATE", "0.5")
	t.Setenv("BILLRUN_OTEL_ENABLED", "1")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, []string{"postgres://r1/billrun", "postgres://r2/billrun"}, cfg.Storage.PostgresReplicaURLs)
	assert.Equal(t, 10*time.Minute, cfg.Billing.RunTimeout)
	assert.Equal(t, 0.5, cfg.Gateway.SuccessRate)
	assert.True(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_ConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: \"7000\"\n")
	t.Setenv("BILLRUN_CONFIG_FILE", path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
}

func TestLoadConfig_FileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadConfig(writeConfigFile(t, "server: [not, a, map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("BILLRUN_BILLING_MAX_CONCURRENCY", "lots")
	t.Setenv("BILLRUN_READ_TIMEOUT", "soon")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Billing.MaxConcurrency)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"bad schedule", func(c *Config) { c.Billing.Schedule = "every tuesday" }, "invalid billing schedule"},
		{"descriptor schedule", func(c *Config) { c.Billing.Schedule = "@monthly" }, ""},
		{"negative timeout", func(c *Config) { c.Billing.RunTimeout = -time.Second }, "run timeout cannot be negative"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }, "invalid storage type"},
		{"sqlite without path", func(c *Config) { c.Storage.Type = "sqlite"; c.Storage.SQLitePath = "" }, "sqlite path is required"},
		{"postgres without url", func(c *Config) { c.Storage.Type = "postgres" }, "postgres URL is required"},
		{"negative seed", func(c *Config) { c.Storage.SeedCustomers = -1 }, "seed sizes cannot be negative"},
		{"redis without key", func(c *Config) { c.Lock.URL = "redis://localhost"; c.Lock.Key = "" }, "lock key is required"},
		{"rates above one", func(c *Config) { c.Gateway.SuccessRate = 0.8; c.Gateway.FaultRate = 0.3 }, "success and fault rates"},
		{"http without url", func(c *Config) { c.Gateway.Type = "http" }, "gateway URL is required"},
		{"http url without scheme", func(c *Config) { c.Gateway.Type = "http"; c.Gateway.URL = "payments.internal:8443" }, "invalid gateway URL"},
		{"http url with ftp scheme", func(c *Config) { c.Gateway.Type = "http"; c.Gateway.URL = "ftp://payments.internal" }, "invalid gateway URL"},
		{"http url", func(c *Config) { c.Gateway.Type = "http"; c.Gateway.URL = "https://payments.internal:8443" }, ""},
		{"unknown gateway", func(c *Config) { c.Gateway.Type = "stripe" }, "invalid gateway type"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "invalid log level"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = ""
	cfg.Storage.Type = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server port is required")
	assert.Contains(t, err.Error(), "invalid storage type")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
}
