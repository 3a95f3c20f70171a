package billing

import "context"

// InvoiceStore supplies pending invoices and records completed payments.
// Implementations must be safe for concurrent use.
type InvoiceStore interface {
	// FetchAllPending returns every PENDING invoice. Invoices of one customer
	// must come back in a stable order.
	FetchAllPending(ctx context.Context) ([]Invoice, error)

	// MarkAsPaid moves the invoice to PAID
	MarkAsPaid(ctx context.Context, inv Invoice) error
}

// PaymentProvider charges a customer for an invoice.
// Implementations must be safe for concurrent use.
type PaymentProvider interface {
	// Charge returns true when the customer was charged and false when the
	// provider declined. An error means the attempt itself failed.
	Charge(ctx context.Context, inv Invoice) (bool, error)
}
