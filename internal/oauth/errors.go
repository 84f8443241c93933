package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the client was constructed with incomplete
	// vendor settings. Fatal; no network call is ever attempted.
	ErrConfiguration = errors.New("oauth: invalid configuration")

	// ErrInvalidState covers malformed, tampered, expired, and
	// tenant-mismatched state values. Decoding fails closed.
	ErrInvalidState = errors.New("oauth: invalid state")

	// ErrNoRefreshToken means a refresh was requested but the stored
	// credential carries no refresh token; only re-authorization helps.
	ErrNoRefreshToken = errors.New("oauth: no refresh token")

	// ErrRefreshRejected means the vendor explicitly refused the refresh
	// token. Distinct from network failure: the tenant must re-authorize,
	// retrying will not recover.
	ErrRefreshRejected = errors.New("oauth: refresh rejected")
)

// TokenExchangeError carries the vendor's raw error body for operator
// diagnostics. End users never see Body; surface a generic message instead.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("oauth: token exchange failed with status %d: %s", e.Status, e.Body)
}

// RefreshRejectedError wraps ErrRefreshRejected with vendor detail.
type RefreshRejectedError struct {
	Status int
	Body   string
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("oauth: refresh rejected with status %d: %s", e.Status, e.Body)
}

func (e *RefreshRejectedError) Unwrap() error { return ErrRefreshRejected }
