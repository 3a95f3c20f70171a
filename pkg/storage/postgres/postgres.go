// Package postgres provides the PostgreSQL invoice store. Billing reads and
// writes use the primary; API reads are spread over read replicas when configured.
package postgres

import (
	"context"

	"github.com/platinummonkey/billrun/pkg/observability"
	"github.com/platinummonkey/billrun/pkg/storage"
	"github.com/platinummonkey/billrun/pkg/storage/sqlstore"
)

// Dialect is the PostgreSQL schema and placeholder style
var Dialect = sqlstore.Dialect{
	Name:           "postgres",
	NumberedParams: true,
	Migrations: []sqlstore.Migration{
		{
			Version: 1,
			Statements: []string{
				`CREATE TABLE customers (
					id       BIGINT PRIMARY KEY,
					currency VARCHAR(3) NOT NULL
				)`,
				`CREATE TABLE invoices (
					id              BIGSERIAL PRIMARY KEY,
					customer_id     BIGINT NOT NULL REFERENCES customers(id),
					amount_value    NUMERIC(12, 2) NOT NULL,
					amount_currency VARCHAR(3) NOT NULL,
					status          VARCHAR(16) NOT NULL
				)`,
				`CREATE INDEX idx_invoices_status ON invoices (status, id)`,
				`CREATE INDEX idx_invoices_customer ON invoices (customer_id, id)`,
			},
		},
	},
}

// Store is an invoice store in PostgreSQL
type Store struct {
	*sqlstore.Store
	conns *ConnectionManager
}

var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL and applies migrations
func Open(ctx context.Context, config ConnectionConfig, logger *observability.Logger) (*Store, error) {
	conns, err := NewConnectionManager(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	s := NewStore(conns)
	applied, err := s.RunMigrations(ctx)
	if err != nil {
		conns.Close()
		return nil, err
	}
	logger.WithField("applied", applied).Info("postgres migrations complete")

	return s, nil
}

// NewStore wraps an existing connection manager without running migrations
func NewStore(conns *ConnectionManager) *Store {
	return &Store{
		Store: sqlstore.New(conns.Primary(), conns.Replica, Dialect),
		conns: conns,
	}
}

// HealthCheck checks the primary and the replicas
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

// Close closes all connections
func (s *Store) Close() error {
	return s.conns.Close()
}
