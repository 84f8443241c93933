package integration

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means the tenant has no stored vendor credential and
	// the requested operation needs one.
	ErrNotConnected = errors.New("integration: vendor account not connected")
)

// SendFailedError reports a failed outbound message. The addressing context
// survives for support; the payload body and any token material do not.
type SendFailedError struct {
	To     string
	Status int
	Reason string
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("integration: send to %s failed (status %d): %s", e.To, e.Status, e.Reason)
}

// APIError is a non-2xx response from the vendor REST API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("integration: vendor api returned status %d", e.Status)
}

// isUnauthorized reports whether err is a vendor 401. Exactly one
// refresh-and-retry is allowed for these.
func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}
