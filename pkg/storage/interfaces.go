package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/billrun/pkg/billing"
)

// ErrInvoiceNotFound is returned when an invoice id does not exist
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceReader provides the read-only views used by the ops API
type InvoiceReader interface {
	// FetchInvoice returns ErrInvoiceNotFound for unknown ids
	FetchInvoice(ctx context.Context, id int64) (billing.Invoice, error)
	FetchInvoices(ctx context.Context) ([]billing.Invoice, error)
	FetchCustomerInvoices(ctx context.Context, customerID int64) ([]billing.Invoice, error)
	FetchCustomers(ctx context.Context) ([]billing.Customer, error)
}

// Seeder loads demo data into an empty store
type Seeder interface {
	Seed(ctx context.Context, data SeedData) error
}

// Store is the full capability set every backend provides
type Store interface {
	billing.InvoiceStore
	InvoiceReader
	Seeder

	// HealthCheck reports whether the backend is reachable
	HealthCheck(ctx context.Context) error
	Close() error
}

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "sqlite", "postgres"

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// Demo data, applied only when the store has no customers
	SeedCustomers           int   `yaml:"seed_customers"`
	SeedInvoicesPerCustomer int   `yaml:"seed_invoices_per_customer"`
	SeedRandom              int64 `yaml:"seed_random"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                    "memory",
		SQLitePath:              "billrun.db",
		PostgresMaxConns:        20,
		PostgresMinConns:        2,
		PostgresTimeout:         10 * time.Second,
		SeedCustomers:           100,
		SeedInvoicesPerCustomer: 10,
		SeedRandom:              1,
	}
}
