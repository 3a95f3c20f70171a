// Package memory provides an in-process invoice store
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/storage"
)

// Store keeps customers and invoices in maps guarded by a RWMutex
type Store struct {
	mu        sync.RWMutex
	customers map[int64]billing.Customer
	invoices  map[int64]billing.Invoice
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		customers: make(map[int64]billing.Customer),
		invoices:  make(map[int64]billing.Invoice),
	}
}

// Seed inserts the customers and invoices, replacing any with the same id
func (s *Store) Seed(ctx context.Context, data storage.SeedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range data.Customers {
		s.customers[c.ID] = c
	}
	for _, inv := range data.Invoices {
		if _, ok := s.customers[inv.CustomerID]; !ok {
			return fmt.Errorf("invoice %d references unknown customer %d", inv.ID, inv.CustomerID)
		}
		s.invoices[inv.ID] = inv
	}
	return nil
}

// FetchAllPending returns pending invoices ordered by id
func (s *Store) FetchAllPending(ctx context.Context) ([]billing.Invoice, error) {
	return s.filter(func(inv billing.Invoice) bool { return inv.IsPending() }), nil
}

// MarkAsPaid sets the invoice status to PAID
func (s *Store) MarkAsPaid(ctx context.Context, inv billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("mark invoice %d as paid: %w", inv.ID, storage.ErrInvoiceNotFound)
	}
	stored.Status = billing.InvoiceStatusPaid
	s.invoices[inv.ID] = stored
	return nil
}

// FetchInvoice returns a single invoice
func (s *Store) FetchInvoice(ctx context.Context, id int64) (billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return billing.Invoice{}, storage.ErrInvoiceNotFound
	}
	return inv, nil
}

// FetchInvoices returns all invoices ordered by id
func (s *Store) FetchInvoices(ctx context.Context) ([]billing.Invoice, error) {
	return s.filter(func(billing.Invoice) bool { return true }), nil
}

// FetchCustomerInvoices returns one customer's invoices ordered by id
func (s *Store) FetchCustomerInvoices(ctx context.Context, customerID int64) ([]billing.Invoice, error) {
	return s.filter(func(inv billing.Invoice) bool { return inv.CustomerID == customerID }), nil
}

// FetchCustomers returns all customers ordered by id
func (s *Store) FetchCustomers(ctx context.Context) ([]billing.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]billing.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers, nil
}

// HealthCheck always succeeds
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (s *Store) filter(keep func(billing.Invoice) bool) []billing.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]billing.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
