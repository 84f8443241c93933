package credentials

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("credentials: not found")
	ErrInvalidArgument = errors.New("credentials: invalid argument")
)

// Store persists tenant credentials.
//
// Tenancy invariant: every operation is keyed by tenant id; an operation for
// tenant A must never read or replace tenant B's credential.
//
// Put must be atomic relative to Get.
type Store interface {
	Get(ctx context.Context, tenantID string) (Credential, error)
	Put(ctx context.Context, tenantID string, cred Credential) error
	Delete(ctx context.Context, tenantID string) error
}

// IsValid reports whether a stored credential exists and is usable at now.
// Missing credentials are not an error here; absence simply means false.
func IsValid(ctx context.Context, s Store, tenantID string, now time.Time) (bool, error) {
	cred, err := s.Get(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred.Valid(now), nil
}
