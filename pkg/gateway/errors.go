package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeCustomerNotFound = "customer_not_found"
	CodeCurrencyMismatch = "currency_mismatch"
	CodeNetwork          = "network_error"
)

var (
	// ErrCustomerNotFound means the provider has no account for the customer
	ErrCustomerNotFound = &ProviderError{StatusCode: http.StatusNotFound, Code: CodeCustomerNotFound, Message: "customer not found"}

	// ErrCurrencyMismatch means the invoice currency differs from the customer's account
	ErrCurrencyMismatch = &ProviderError{StatusCode: http.StatusConflict, Code: CodeCurrencyMismatch, Message: "currency does not match customer account"}

	// ErrNetwork means the provider could not be reached
	ErrNetwork = &ProviderError{StatusCode: http.StatusServiceUnavailable, Code: CodeNetwork, Message: "network unavailable"}

	// ErrMalformedResponse means a successful response could not be understood.
	// It is not recoverable: the charge may have happened.
	ErrMalformedResponse = errors.New("malformed payment provider response")
)

// ProviderError is an error answer from the payment provider
type ProviderError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("payment provider returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment provider returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Is matches provider errors with the same code
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// Recoverable reports whether the invoice should simply stay pending until
// the next run. Server side failures, rate limiting and the documented
// customer rejections are recoverable; any other 4xx points at a defect or
// misconfiguration on our side.
func (e *ProviderError) Recoverable() bool {
	switch e.Code {
	case CodeCustomerNotFound, CodeCurrencyMismatch, CodeNetwork:
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
