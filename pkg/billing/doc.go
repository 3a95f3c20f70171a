// Package billing charges pending invoices through a payment provider.
//
// # Overview
//
// A billing run fetches every pending invoice from an InvoiceStore, groups the
// invoices by customer and bills each customer on its own goroutine. Within a
// customer, invoices are charged one at a time in the order the store returned
// them. An invoice is marked paid only after the PaymentProvider confirmed the
// charge.
//
// # Outcomes
//
// ChargeOne reports business failures as *ChargeError:
//
//   - KindInvoiceNotPending: the invoice was not pending, the provider was not called
//   - KindDeclined: the provider declined; the customer's remaining invoices are skipped
//   - KindGatewayFault: the provider failed with a recoverable error; the next invoice is tried
//
// Any other error is fatal. It cancels the customers still being billed and is
// returned from BillAllPending. Which provider errors count as gateway faults is
// decided by Config.IsFault, IsGatewayFault by default.
//
// # Usage Example
//
//	svc := billing.NewService(store, provider, billing.DefaultConfig(), logger, metrics)
//	if err := svc.BillAllPending(ctx); err != nil {
//		logger.WithError(err).Error("billing run failed")
//	}
//
// # Related Packages
//
//   - pkg/scheduler: Triggers billing runs
//   - pkg/storage: Invoice stores
//   - pkg/gateway: Payment providers
package billing
