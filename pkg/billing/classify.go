package billing

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// recoverable is implemented by provider errors that know whether they are a
// business fault (true) or a defect that must fail the run (false)
type recoverable interface {
	Recoverable() bool
}

// IsGatewayFault reports whether a provider error is an expected exceptional
// condition. Faults are logged and the customer's next invoice is attempted;
// every other error aborts the run.
func IsGatewayFault(err error) bool {
	if err == nil {
		return false
	}

	// The run itself is being torn down
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r recoverable
	if errors.As(err, &r) {
		return r.Recoverable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// An HTTP client error is only a fault when the transport failed. Request
	// building errors such as an unsupported URL scheme are configuration bugs.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		err = urlErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
