package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/config"
	"github.com/platinummonkey/billrun/pkg/gateway"
	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/scheduler"
	"github.com/platinummonkey/billrun/pkg/storage"
	"github.com/platinummonkey/billrun/pkg/storage/memory"
	"github.com/platinummonkey/billrun/pkg/storage/postgres"
	"github.com/platinummonkey/billrun/pkg/storage/redis"
	"github.com/platinummonkey/billrun/pkg/storage/sqlite"
)

// app holds the long lived components shared by serve and run-once
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	health   *observability.HealthChecker

	store       storage.Store
	redisClient *goredis.Client
	history     *scheduler.History
	job         *scheduler.Job
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout),
		health: observability.NewHealthChecker(cfg.Observability.OTelServiceVersion),
	}

	if cfg.Observability.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = observability.NewMetrics(a.registry)
	}

	store, err := openStore(ctx, cfg.Storage, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.health.AddCheck("storage", true, store.HealthCheck)

	if err := seedIfEmpty(ctx, store, cfg.Storage, a.logger); err != nil {
		a.Close()
		return nil, err
	}

	locker, client, err := newLocker(ctx, cfg.Lock, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redisClient = client
	if client != nil {
		// not critical: the local lock still serializes runs here
		a.health.AddCheck("redis", false, observability.RedisCheck(client))
	}

	service := billing.NewService(store, newProvider(cfg.Gateway), &billing.Config{
		MaxConcurrency: cfg.Billing.MaxConcurrency,
	}, a.logger, a.metrics)

	a.history = scheduler.NewHistory(cfg.Billing.HistorySize)
	a.job = scheduler.NewJob(service, locker, a.history, a.logger, a.metrics)
	a.job.RunTimeout = cfg.Billing.RunTimeout

	return a, nil
}

// Close releases the store and the redis client
func (a *app) Close() error {
	var firstErr error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func openStore(ctx context.Context, cfg storage.Config, logger *observability.Logger) (storage.Store, error) {
	logger = logger.WithField("storage", cfg.Type)

	switch cfg.Type {
	case "memory":
		logger.Info("using in-memory invoice store")
		return memory.New(), nil

	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("using sqlite invoice store")
		return store, nil

	case "postgres":
		store, err := postgres.Open(ctx, postgres.ConnectionConfig{
			PrimaryURL:  cfg.PostgresURL,
			ReplicaURLs: cfg.PostgresReplicaURLs,
			MaxConns:    cfg.PostgresMaxConns,
			MinConns:    cfg.PostgresMinConns,
			Timeout:     cfg.PostgresTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		logger.WithField("replicas", len(cfg.PostgresReplicaURLs)).Info("using postgres invoice store")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// seedIfEmpty loads demo data when the store has no customers yet
func seedIfEmpty(ctx context.Context, store storage.Store, cfg storage.Config, logger *observability.Logger) error {
	if cfg.SeedCustomers == 0 || cfg.SeedInvoicesPerCustomer == 0 {
		return nil
	}

	customers, err := store.FetchCustomers(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for existing customers: %w", err)
	}
	if len(customers) > 0 {
		logger.WithField("customers", len(customers)).Debug("store already populated, skipping seed")
		return nil
	}

	data := storage.GenerateSeed(cfg.SeedCustomers, cfg.SeedInvoicesPerCustomer, rand.New(rand.NewSource(cfg.SeedRandom)))
	if err := store.Seed(ctx, data); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	logger.WithFields(map[string]interface{}{
		"customers": len(data.Customers),
		"invoices":  len(data.Invoices),
	}).Info("seeded demo data")
	return nil
}

func newProvider(cfg config.GatewayConfig) billing.PaymentProvider {
	if cfg.Type == "http" {
		return gateway.NewHTTPProvider(gateway.HTTPConfig{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, nil)
	}
	return gateway.NewSimulatedProvider(gateway.SimulatedConfig{
		SuccessRate: cfg.SuccessRate,
		FaultRate:   cfg.FaultRate,
		Latency:     cfg.Latency,
		Seed:        cfg.Seed,
	})
}

// newLocker always guards against overlapping runs in this process. With a
// redis URL it also takes a lock shared by every replica.
func newLocker(ctx context.Context, cfg redis.Config, logger *observability.Logger) (scheduler.Locker, *goredis.Client, error) {
	local := &scheduler.LocalLocker{}
	if cfg.URL == "" {
		logger.Info("no redis URL configured, billing runs are only serialized within this process")
		return local, nil, nil
	}

	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	lock := redis.NewRunLock(client, cfg.Key, cfg.TTL, logger)
	return scheduler.MultiLocker{local, lock}, client, nil
}
