package billing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	outcomePaid  = "paid"
	outcomeFatal = "fatal"
)

// ChargeOne charges a single invoice and marks it paid once the provider has
// confirmed the charge. Business failures come back as *ChargeError; any other
// error is fatal and must abort the run.
func (s *Service) ChargeOne(ctx context.Context, inv Invoice) (err error) {
	ctx, span := s.tracer.Start(ctx, "billing.charge", trace.WithAttributes(
		attribute.Int64("invoice.id", inv.ID),
		attribute.Int64("customer.id", inv.CustomerID),
	))
	defer func() { endSpan(span, err) }()

	if !inv.IsPending() {
		s.metrics.RecordCharge(KindInvoiceNotPending.String(), 0)
		return newChargeError(KindInvoiceNotPending, inv, nil)
	}

	start := time.Now()
	charged, err := s.provider.Charge(ctx, inv)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.metrics.RecordCharge(outcomeFatal, elapsed)
			return fmt.Errorf("charge invoice %d aborted: %w", inv.ID, ctxErr)
		}
		if s.config.IsFault(err) {
			s.metrics.RecordCharge(KindGatewayFault.String(), elapsed)
			return newChargeError(KindGatewayFault, inv, err)
		}
		s.metrics.RecordCharge(outcomeFatal, elapsed)
		return fmt.Errorf("charge invoice %d: %w", inv.ID, err)
	}

	if !charged {
		s.metrics.RecordCharge(KindDeclined.String(), elapsed)
		return newChargeError(KindDeclined, inv, nil)
	}

	// The customer has been charged: record it even if the run is being cancelled.
	if err := s.store.MarkAsPaid(context.WithoutCancel(ctx), inv); err != nil {
		s.metrics.RecordCharge(outcomeFatal, elapsed)
		return fmt.Errorf("failed to mark invoice %d as paid: %w", inv.ID, err)
	}

	s.metrics.RecordCharge(outcomePaid, elapsed)
	return nil
}
