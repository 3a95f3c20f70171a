package storage

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/billrun/pkg/billing"
)

// SeedData is a batch of customers and their invoices
type SeedData struct {
	Customers []billing.Customer
	Invoices  []billing.Invoice
}

// GenerateSeed builds demo data: every customer gets a random currency and
// perCustomer invoices between 10 and 500 in that currency. The first invoice
// of each customer is already PAID, the rest are PENDING. Ids start at 1.
func GenerateSeed(customers, perCustomer int, rng *rand.Rand) SeedData {
	data := SeedData{
		Customers: make([]billing.Customer, 0, customers),
		Invoices:  make([]billing.Invoice, 0, customers*perCustomer),
	}

	var invoiceID int64
	for c := 1; c <= customers; c++ {
		customer := billing.Customer{
			ID:       int64(c),
			Currency: billing.Currencies[rng.Intn(len(billing.Currencies))],
		}
		data.Customers = append(data.Customers, customer)

		for i := 0; i < perCustomer; i++ {
			invoiceID++
			status := billing.InvoiceStatusPending
			if i == 0 {
				status = billing.InvoiceStatusPaid
			}

			cents := int64(1000 + rng.Intn(49001))
			data.Invoices = append(data.Invoices, billing.Invoice{
				ID:         invoiceID,
				CustomerID: customer.ID,
				Amount: billing.Money{
					Value:    decimal.New(cents, -2),
					Currency: customer.Currency,
				},
				Status: status,
			})
		}
	}

	return data
}
