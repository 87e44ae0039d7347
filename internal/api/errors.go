package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by ProtocolError values carrying a 401 status.
// Reconciliation sync swallows every other failure but must let this one
// propagate so session invalidation can run.
var ErrUnauthorized = errors.New("unauthorized")

// TransportError wraps failures that happened before any HTTP status was
// received: DNS, connect, TLS, timeouts, connection resets mid-body.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError represents a completed HTTP exchange with a non-2xx status.
// Message is best-effort text extracted from the response body.
type ProtocolError struct {
	Status  int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}
