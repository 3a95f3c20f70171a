package memory

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/billrun/pkg/billing"
	"github.com/platinummonkey/billrun/pkg/storage"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	eur := billing.Money{Value: decimal.NewFromInt(10), Currency: billing.CurrencyEUR}
	require.NoError(t, s.Seed(context.Background(), storage.SeedData{
		Customers: []billing.Customer{{ID: 2, Currency: billing.CurrencyEUR}, {ID: 1, Currency: billing.CurrencyEUR}},
		Invoices: []billing.Invoice{
			{ID: 3, CustomerID: 2, Amount: eur, Status: billing.InvoiceStatusPending},
			{ID: 1, CustomerID: 1, Amount: eur, Status: billing.InvoiceStatusPaid},
			{ID: 2, CustomerID: 2, Amount: eur, Status: billing.InvoiceStatusPending},
		},
	}))
	return s
}

func ids(invoices []billing.Invoice) []int64 {
	out := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, inv.ID)
	}
	return out
}

func TestStore_FetchAllPendingOrderedByID(t *testing.T) {
	s := seeded(t)

	pending, err := s.FetchAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(pending))
}

func TestStore_MarkAsPaid(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	inv, err := s.FetchInvoice(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkAsPaid(ctx, inv))

	inv, err = s.FetchInvoice(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceStatusPaid, inv.Status)

	pending, err := s.FetchAllPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(pending))
}

func TestStore_MarkAsPaidUnknown(t *testing.T) {
	err := New().MarkAsPaid(context.Background(), billing.Invoice{ID: 99})
	assert.ErrorIs(t, err, storage.ErrInvoiceNotFound)
}

func TestStore_Reads(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	_, err := s.FetchInvoice(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrInvoiceNotFound)

	all, err := s.FetchInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(all))

	mine, err := s.FetchCustomerInvoices(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(mine))

	none, err := s.FetchCustomerInvoices(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, none)

	customers, err := s.FetchCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(1), customers[0].ID)
}

func TestStore_SeedRejectsOrphanInvoice(t *testing.T) {
	err := New().Seed(context.Background(), storage.SeedData{
		Invoices: []billing.Invoice{{ID: 1, CustomerID: 5}},
	})
	assert.Error(t, err)
}

func TestStore_GeneratedSeed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Seed(ctx, storage.GenerateSeed(10, 5, rand.New(rand.NewSource(1)))))

	pending, err := s.FetchAllPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 40)
}
