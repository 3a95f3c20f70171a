// Package gateway contains billing.PaymentProvider implementations.
//
// HTTPProvider talks to a payment provider's REST API and maps its error
// answers to ProviderError values. Recoverable provider errors leave the
// invoice pending for the next run; everything else stops the run.
//
// SimulatedProvider draws random outcomes for local runs.
package gateway
