package inference

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrServiceUnreachable is returned when no connection to the completion
// service could be established. It is user-actionable: the service is offline
// or misconfigured.
var ErrServiceUnreachable = errors.New("inference service unreachable")

// UpstreamError is returned for any other failed completion: a non-success
// status, an unreadable body, or a body with no completion in it.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Msg        string
	Err        error
}

func (e *UpstreamError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Provider, e.Msg)
	if e.StatusCode != 0 {
		s = fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// classifyTransport maps an error from sending a request to the taxonomy.
func classifyTransport(provider string, err error) error {
	if isConnectionFailure(err) {
		return fmt.Errorf("%w: %s: %w", ErrServiceUnreachable, provider, err)
	}
	return &UpstreamError{Provider: provider, Msg: "request failed", Err: err}
}

// isConnectionFailure matches dial, DNS and refused-connection errors.
// Timeouts after a connection was made are not connection failures.
func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}
