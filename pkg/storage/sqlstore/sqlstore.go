// Package sqlstore implements the invoice store queries shared by the SQL backends
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/storage"
)

// Dialect describes how a backend differs from the shared queries
type Dialect struct {
	Name string
	// NumberedParams rewrites ? placeholders to $1, $2, ...
	NumberedParams bool
	Migrations     []Migration
}

// Store runs the shared queries. Billing reads and all writes go to the
// writer; API reads go to whatever reader returns.
type Store struct {
	writer  *sql.DB
	reader  func() *sql.DB
	dialect Dialect
}

// New creates a Store. A nil reader reads from the writer.
func New(writer *sql.DB, reader func() *sql.DB, dialect Dialect) *Store {
	if reader == nil {
		reader = func() *sql.DB { return writer }
	}
	return &Store{writer: writer, reader: reader, dialect: dialect}
}

// DB returns the writer connection
func (s *Store) DB() *sql.DB {
	return s.writer
}

func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const invoiceColumns = "id, customer_id, amount_value, amount_currency, status"

// FetchAllPending returns pending invoices ordered by id
func (s *Store) FetchAllPending(ctx context.Context) ([]billing.Invoice, error) {
	return s.queryInvoices(ctx, s.writer,
		"SELECT "+invoiceColumns+" FROM invoices WHERE status = ? ORDER BY id",
		string(billing.InvoiceStatusPending))
}

// MarkAsPaid sets the invoice status to PAID
func (s *Store) MarkAsPaid(ctx context.Context, inv billing.Invoice) error {
	res, err := s.writer.ExecContext(ctx,
		s.rebind("UPDATE invoices SET status = ? WHERE id = ?"),
		string(billing.InvoiceStatusPaid), inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark invoice %d as paid: %w", inv.ID, storage.ErrInvoiceNotFound)
	}
	return nil
}

// FetchInvoice returns a single invoice
func (s *Store) FetchInvoice(ctx context.Context, id int64) (billing.Invoice, error) {
	row := s.reader().QueryRowContext(ctx,
		s.rebind("SELECT "+invoiceColumns+" FROM invoices WHERE id = ?"), id)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Invoice{}, storage.ErrInvoiceNotFound
	}
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("failed to fetch invoice %d: %w", id, err)
	}
	return inv, nil
}

// FetchInvoices returns all invoices ordered by id
func (s *Store) FetchInvoices(ctx context.Context) ([]billing.Invoice, error) {
	return s.queryInvoices(ctx, s.reader(), "SELECT "+invoiceColumns+" FROM invoices ORDER BY id")
}

// FetchCustomerInvoices returns one customer's invoices ordered by id
func (s *Store) FetchCustomerInvoices(ctx context.Context, customerID int64) ([]billing.Invoice, error) {
	return s.queryInvoices(ctx, s.reader(),
		"SELECT "+invoiceColumns+" FROM invoices WHERE customer_id = ? ORDER BY id", customerID)
}

// FetchCustomers returns all customers ordered by id
func (s *Store) FetchCustomers(ctx context.Context) ([]billing.Customer, error) {
	rows, err := s.reader().QueryContext(ctx, "SELECT id, currency FROM customers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []billing.Customer
	for rows.Next() {
		var c billing.Customer
		var currency string
		if err := rows.Scan(&c.ID, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		c.Currency = billing.Currency(currency)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// Seed inserts the customers and invoices in a single transaction
func (s *Store) Seed(ctx context.Context, data storage.SeedData) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertCustomer := s.rebind("INSERT INTO customers (id, currency) VALUES (?, ?)")
	for _, c := range data.Customers {
		if _, err := tx.ExecContext(ctx, insertCustomer, c.ID, string(c.Currency)); err != nil {
			return fmt.Errorf("failed to insert customer %d: %w", c.ID, err)
		}
	}

	insertInvoice := s.rebind("INSERT INTO invoices (" + invoiceColumns + ") VALUES (?, ?, ?, ?, ?)")
	for _, inv := range data.Invoices {
		if _, err := tx.ExecContext(ctx, insertInvoice,
			inv.ID, inv.CustomerID, inv.Amount.Value.StringFixed(2), string(inv.Amount.Currency), string(inv.Status)); err != nil {
			return fmt.Errorf("failed to insert invoice %d: %w", inv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// HealthCheck pings the writer
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.writer.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row scanner) (billing.Invoice, error) {
	var inv billing.Invoice
	var currency, status string
	if err := row.Scan(&inv.ID, &inv.CustomerID, &inv.Amount.Value, &currency, &status); err != nil {
		return billing.Invoice{}, err
	}
	inv.Amount.Currency = billing.Currency(currency)
	inv.Status = billing.InvoiceStatus(status)
	return inv, nil
}

func (s *Store) queryInvoices(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]billing.Invoice, error) {
	rows, err := db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
