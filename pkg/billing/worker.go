package billing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BillCustomer charges one customer's invoices one after another, in the
// order given. Invoices that are not pending or hit a gateway fault are
// skipped. A decline stops the customer for the rest of the run, since the
// remaining charges would be declined for the same reason.
func (s *Service) BillCustomer(ctx context.Context, invoices []Invoice) (err error) {
	if len(invoices) == 0 {
		return nil
	}
	customerID := invoices[0].CustomerID

	ctx, span := s.tracer.Start(ctx, "billing.customer", trace.WithAttributes(
		attribute.Int64("customer.id", customerID),
		attribute.Int("customer.invoices", len(invoices)),
	))
	defer func() { endSpan(span, err) }()

	logger := s.loggerFor(ctx).WithField("customer_id", customerID)

	for i, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.ChargeOne(ctx, inv)
		if err == nil {
			continue
		}

		ce, ok := AsChargeError(err)
		if !ok {
			return err
		}

		entry := logger.WithFields(map[string]interface{}{
			"invoice_id": inv.ID,
			"reason":     ce.Kind.String(),
		}).WithError(ce.Cause)

		if ce.Kind == KindDeclined {
			s.metrics.RecordCustomerHalted()
			entry.WithField("skipped_invoices", len(invoices)-i-1).
				Warn("charge declined, skipping remaining invoices of customer for this run")
			return nil
		}

		entry.Warn("invoice not billed, continuing with next invoice of customer")
	}

	return nil
}
