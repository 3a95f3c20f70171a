package sqlstore

import (
	"context"
	"fmt"
	"sort"
)

// Migration is one versioned schema change
type Migration struct {
	Version    int
	Statements []string
}

// RunMigrations applies every migration newer than the recorded schema
// version. Each migration runs in its own transaction. It returns how many
// migrations were applied.
func (s *Store) RunMigrations(ctx context.Context) (int, error) {
	if _, err := s.writer.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := s.writer.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	migrations := make([]Migration, len(s.dialect.Migrations))
	copy(migrations, s.dialect.Migrations)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: failed to begin transaction: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), m.Version); err != nil {
		return fmt.Errorf("migration %d: failed to record version: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: failed to commit: %w", m.Version, err)
	}
	return nil
}
