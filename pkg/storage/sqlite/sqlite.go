// Package sqlite provides a single file invoice store backed by mattn/go-sqlite3
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/billrun/pkg/storage"
	"github.com/platinummonkey/billrun/pkg/storage/sqlstore"
)

// Dialect is the SQLite schema and placeholder style
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Migrations: []sqlstore.Migration{
		{
			Version: 1,
			Statements: []string{
				`CREATE TABLE customers (
					id       INTEGER PRIMARY KEY,
					currency TEXT NOT NULL
				)`,
				`CREATE TABLE invoices (
					id              INTEGER PRIMARY KEY,
					customer_id     INTEGER NOT NULL REFERENCES customers(id),
					amount_value    TEXT NOT NULL,
					amount_currency TEXT NOT NULL,
					status          TEXT NOT NULL
				)`,
				`CREATE INDEX idx_invoices_status ON invoices (status, id)`,
				`CREATE INDEX idx_invoices_customer ON invoices (customer_id, id)`,
			},
		},
	},
}

// Store is an invoice store in a SQLite database
type Store struct {
	*sqlstore.Store
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: alive
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &Store{Store: sqlstore.New(db, nil, Dialect), db: db}
	if _, err := s.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
