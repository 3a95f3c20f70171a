// Package storage defines the invoice persistence backends used by billing runs and the ops API.
//
// # Overview
//
// Every backend implements billing.InvoiceStore for the billing engine and
// InvoiceReader for read-only API views. They are composed into Store:
//
//	type Store interface {
//		billing.InvoiceStore
//		InvoiceReader
//		Seeder
//		HealthCheck(ctx context.Context) error
//		Close() error
//	}
//
// # Backend Implementations
//
//   - memory/: mutex-guarded maps. Development and tests.
//   - sqlite/: single file database through mattn/go-sqlite3.
//   - postgres/: lib/pq with an optional set of read replicas for API reads.
//
// The SQL backends share their queries through sqlstore/ and differ only in
// driver, placeholder style and schema.
//
// # Ordering
//
// FetchAllPending returns invoices ordered by id, which keeps the order of
// each customer's invoices stable between runs.
//
// # Demo Data
//
//	data := storage.GenerateSeed(100, 10, rand.New(rand.NewSource(1)))
//	err := store.Seed(ctx, data)
//
// # Related Packages
//
//   - pkg/billing: Consumes billing.InvoiceStore
//   - pkg/api: Consumes InvoiceReader
//   - pkg/storage/redis: Distributed billing run lock
package storage
