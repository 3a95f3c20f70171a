package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
)

// Valid reports whether the status is one the stores know how to persist
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid:
		return true
	}
	return false
}

// Currency is an ISO 4217 currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyDKK Currency = "DKK"
	CurrencySEK Currency = "SEK"
	CurrencyGBP Currency = "GBP"
)

// Currencies lists every currency the stores accept
var Currencies = []Currency{CurrencyEUR, CurrencyUSD, CurrencyDKK, CurrencySEK, CurrencyGBP}

// Money is a decimal amount in a single currency
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

// NewMoney parses a decimal string into Money
func NewMoney(value string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return Money{Value: d, Currency: currency}, nil
}

// String renders the amount with two decimal places followed by the currency
func (m Money) String() string {
	return m.Value.StringFixed(2) + " " + string(m.Currency)
}

// Invoice represents a customer invoice
type Invoice struct {
	ID         int64         `json:"id"`
	CustomerID int64         `json:"customer_id"`
	Amount     Money         `json:"amount"`
	Status     InvoiceStatus `json:"status"`
}

// IsPending reports whether the invoice is a charge candidate
func (i Invoice) IsPending() bool {
	return i.Status == InvoiceStatusPending
}

// Customer represents an invoiced customer
type Customer struct {
	ID       int64    `json:"id"`
	Currency Currency `json:"currency"`
}

// groupByCustomer splits invoices into per-customer slices. Groups are ordered by
// first appearance and each group keeps the order the invoices were supplied in.
func groupByCustomer(invoices []Invoice) []customerInvoices {
	index := make(map[int64]int)
	var groups []customerInvoices

	for _, inv := range invoices {
		i, ok := index[inv.CustomerID]
		if !ok {
			i = len(groups)
			index[inv.CustomerID] = i
			groups = append(groups, customerInvoices{customerID: inv.CustomerID})
		}
		groups[i].invoices = append(groups[i].invoices, inv)
	}

	return groups
}

type customerInvoices struct {
	customerID int64
	invoices   []Invoice
}
