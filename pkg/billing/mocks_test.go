package billing

import (
	"bytes"
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/billrun/pkg/observability"
)

// mockStore records MarkAsPaid calls. FetchAllPendingFunc and MarkAsPaidFunc
// override the default behavior when set.
type mockStore struct {
	mu       sync.Mutex
	invoices []Invoice
	paid     []int64

	FetchAllPendingFunc func(ctx context.Context) ([]Invoice, error)
	MarkAsPaidFunc      func(ctx context.Context, inv Invoice) error
}

func (m *mockStore) FetchAllPending(ctx context.Context) ([]Invoice, error) {
	if m.FetchAllPendingFunc != nil {
		return m.FetchAllPendingFunc(ctx)
	}
	var pending []Invoice
	for _, inv := range m.invoices {
		if inv.IsPending() {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

func (m *mockStore) MarkAsPaid(ctx context.Context, inv Invoice) error {
	if m.MarkAsPaidFunc != nil {
		if err := m.MarkAsPaidFunc(ctx, inv); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid = append(m.paid, inv.ID)
	return nil
}

func (m *mockStore) paidIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.paid...)
}

// mockProvider records every invoice it was asked to charge
type mockProvider struct {
	mu      sync.Mutex
	charged []int64

	ChargeFunc func(ctx context.Context, inv Invoice) (bool, error)
}

func (m *mockProvider) Charge(ctx context.Context, inv Invoice) (bool, error) {
	m.mu.Lock()
	m.charged = append(m.charged, inv.ID)
	m.mu.Unlock()

	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, inv)
	}
	return true, nil
}

func (m *mockProvider) chargedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.charged...)
}

func (m *mockProvider) attempts(id int64) int {
	n := 0
	for _, c := range m.chargedIDs() {
		if c == id {
			n++
		}
	}
	return n
}

func invoice(id, customerID int64, status InvoiceStatus) Invoice {
	return Invoice{
		ID:         id,
		CustomerID: customerID,
		Amount:     Money{Value: decimal.NewFromInt(100), Currency: CurrencyEUR},
		Status:     status,
	}
}

func pending(id, customerID int64) Invoice {
	return invoice(id, customerID, InvoiceStatusPending)
}

func newTestService(store InvoiceStore, provider PaymentProvider) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	return NewService(store, provider, DefaultConfig(), logger, nil), &buf
}
