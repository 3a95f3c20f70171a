package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvoiceNotPending is matched by charge errors of kind KindInvoiceNotPending
	ErrInvoiceNotPending = errors.New("invoice status is not pending")

	// ErrDeclined is matched by charge errors of kind KindDeclined
	ErrDeclined = errors.New("charge declined by payment provider")

	// ErrGatewayFault is matched by charge errors of kind KindGatewayFault
	ErrGatewayFault = errors.New("payment provider fault")
)

// ChargeErrorKind identifies which business outcome a ChargeError carries
type ChargeErrorKind int

const (
	// KindInvoiceNotPending means the invoice was not eligible and the provider was not called
	KindInvoiceNotPending ChargeErrorKind = iota + 1
	// KindDeclined means the provider answered that the charge did not go through
	KindDeclined
	// KindGatewayFault means the provider failed with a recoverable condition
	KindGatewayFault
)

func (k ChargeErrorKind) String() string {
	switch k {
	case KindInvoiceNotPending:
		return "not_pending"
	case KindDeclined:
		return "declined"
	case KindGatewayFault:
		return "gateway_fault"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (k ChargeErrorKind) sentinel() error {
	switch k {
	case KindInvoiceNotPending:
		return ErrInvoiceNotPending
	case KindDeclined:
		return ErrDeclined
	case KindGatewayFault:
		return ErrGatewayFault
	default:
		return nil
	}
}

// ChargeError is an expected business failure of a single charge attempt.
// Errors returned by ChargeOne that are not a *ChargeError are fatal.
type ChargeError struct {
	Kind       ChargeErrorKind
	InvoiceID  int64
	CustomerID int64
	// Cause is only set for KindGatewayFault
	Cause error
}

func (e *ChargeError) Error() string {
	msg := fmt.Sprintf("invoice %d (customer %d): %v", e.InvoiceID, e.CustomerID, e.Kind.sentinel())
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the provider error behind a gateway fault
func (e *ChargeError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind
func (e *ChargeError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newChargeError(kind ChargeErrorKind, inv Invoice, cause error) *ChargeError {
	return &ChargeError{
		Kind:       kind,
		InvoiceID:  inv.ID,
		CustomerID: inv.CustomerID,
		Cause:      cause,
	}
}

// AsChargeError extracts a *ChargeError from err's chain
func AsChargeError(err error) (*ChargeError, bool) {
	var ce *ChargeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
