package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/billrun/pkg/storage"
	"github.com/platinummonkey/billrun/pkg/storage/redis"
)

// EnvPrefix prefixes every environment variable read by LoadConfig
const EnvPrefix = "BILLRUN_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Billing       BillingConfig       `yaml:"billing"`
	Storage       storage.Config      `yaml:"storage"`
	Lock          redis.Config        `yaml:"lock"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds ops API server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// BillingConfig controls when and how billing runs
type BillingConfig struct {
	// Schedule is a standard five field cron expression evaluated in UTC
	Schedule       string        `yaml:"schedule"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	RunOnStart     bool          `yaml:"run_on_start"`
	HistorySize    int           `yaml:"history_size"`
}

// GatewayConfig selects and configures the payment provider
type GatewayConfig struct {
	Type    string        `yaml:"type"` // "simulated" or "http"
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`

	// simulated provider
	SuccessRate float64       `yaml:"success_rate"`
	FaultRate   float64       `yaml:"fault_rate"`
	Latency     time.Duration `yaml:"latency"`
	Seed        int64         `yaml:"seed"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Billing: BillingConfig{
			Schedule:       "0 0 1 * *",
			MaxConcurrency: 16,
			HistorySize:    50,
		},
		Storage: storage.DefaultConfig(),
		Lock: redis.Config{
			Key: "billrun:run-lock",
			TTL: time.Minute,
		},
		Gateway: GatewayConfig{
			Type:        "simulated",
			Timeout:     30 * time.Second,
			SuccessRate: 0.7,
			FaultRate:   0.1,
			Seed:        1,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "billrun",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (skipped when path is empty), then BILLRUN_* environment variables.
// When path is empty BILLRUN_CONFIG_FILE is used.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	// fields missing from the file keep their current values
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HOST", s.Host)
	s.Port = getEnv("PORT", s.Port)
	s.ReadTimeout = getEnvDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	b := &c.Billing
	b.Schedule = getEnv("BILLING_SCHEDULE", b.Schedule)
	b.MaxConcurrency = getEnvInt("BILLING_MAX_CONCURRENCY", b.MaxConcurrency)
	b.RunTimeout = getEnvDuration("BILLING_RUN_TIMEOUT", b.RunTimeout)
	b.RunOnStart = getEnvBool("BILLING_RUN_ON_START", b.RunOnStart)
	b.HistorySize = getEnvInt("BILLING_HISTORY_SIZE", b.HistorySize)

	st := &c.Storage
	st.Type = getEnv("STORAGE_TYPE", st.Type)
	st.SQLitePath = getEnv("SQLITE_PATH", st.SQLitePath)
	st.PostgresURL = getEnv("POSTGRES_URL", st.PostgresURL)
	if replicas := getEnv("POSTGRES_REPLICA_URLS", ""); replicas != "" {
		st.PostgresReplicaURLs = splitList(replicas)
	}
	st.PostgresMaxConns = getEnvInt("POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.SeedCustomers = getEnvInt("SEED_CUSTOMERS", st.SeedCustomers)
	st.SeedInvoicesPerCustomer = getEnvInt("SEED_INVOICES_PER_CUSTOMER", st.SeedInvoicesPerCustomer)
	st.SeedRandom = getEnvInt64("SEED_RANDOM", st.SeedRandom)

	l := &c.Lock
	l.URL = getEnv("REDIS_URL", l.URL)
	l.Password = getEnv("REDIS_PASSWORD", l.Password)
	l.DB = getEnvInt("REDIS_DB", l.DB)
	l.MaxRetries = getEnvInt("REDIS_MAX_RETRIES", l.MaxRetries)
	l.PoolSize = getEnvInt("REDIS_POOL_SIZE", l.PoolSize)
	l.Key = getEnv("LOCK_KEY", l.Key)
	l.TTL = getEnvDuration("LOCK_TTL", l.TTL)

	g := &c.Gateway
	g.Type = getEnv("GATEWAY_TYPE", g.Type)
	g.URL = getEnv("GATEWAY_URL", g.URL)
	g.APIKey = getEnv("GATEWAY_API_KEY", g.APIKey)
	g.Timeout = getEnvDuration("GATEWAY_TIMEOUT", g.Timeout)
	g.SuccessRate = getEnvFloat("GATEWAY_SUCCESS_RATE", g.SuccessRate)
	g.FaultRate = getEnvFloat("GATEWAY_FAULT_RATE", g.FaultRate)
	g.Latency = getEnvDuration("GATEWAY_LATENCY", g.Latency)
	g.Seed = getEnvInt64("GATEWAY_SEED", g.Seed)

	o := &c.Observability
	o.LogLevel = getEnv("LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}

	if _, err := cron.ParseStandard(c.Billing.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid billing schedule %q: %w", c.Billing.Schedule, err))
	}
	if c.Billing.RunTimeout < 0 {
		errs = append(errs, errors.New("billing run timeout cannot be negative"))
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite path is required for sqlite storage"))
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("postgres URL is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or postgres)", c.Storage.Type))
	}
	if c.Storage.SeedCustomers < 0 || c.Storage.SeedInvoicesPerCustomer < 0 {
		errs = append(errs, errors.New("seed sizes cannot be negative"))
	}

	if c.Lock.URL != "" && c.Lock.Key == "" {
		errs = append(errs, errors.New("lock key is required when a redis URL is set"))
	}

	switch c.Gateway.Type {
	case "simulated":
		if !isRate(c.Gateway.SuccessRate) || !isRate(c.Gateway.FaultRate) || c.Gateway.SuccessRate+c.Gateway.FaultRate > 1 {
			errs = append(errs, errors.New("gateway success and fault rates must be between 0 and 1 and sum to at most 1"))
		}
	case "http":
		if c.Gateway.URL == "" {
			errs = append(errs, errors.New("gateway URL is required for http gateway"))
		} else if u, err := url.Parse(c.Gateway.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid gateway URL: %q (must be an absolute http or https URL)", c.Gateway.URL))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid gateway type: %s (must be simulated or http)", c.Gateway.Type))
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Observability.LogLevel))
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTelServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

func isRate(f float64) bool {
	return f >= 0 && f <= 1
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns BILLRUN_<key> or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
