package credentials

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshFunc performs the vendor refresh grant for an existing credential.
// Implementations live in internal/oauth; injected here to keep this package
// free of protocol details.
type RefreshFunc func(ctx context.Context, cred Credential) (Credential, error)

// Refresher hands out credentials that are valid for immediate use,
// refreshing through the vendor when needed.
//
// Concurrency contract: N concurrent callers discovering an expired
// credential for the same tenant trigger exactly one vendor refresh; the
// losers wait for the winner's result. Tenants never share flights.
type Refresher struct {
	store   Store
	refresh RefreshFunc
	group   singleflight.Group

	// Now is injectable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

func NewRefresher(store Store, refresh RefreshFunc) *Refresher {
	return &Refresher{store: store, refresh: refresh}
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Fresh returns a credential guaranteed valid at the time of return.
// Returns ErrNotFound when the tenant has no stored credential at all.
func (r *Refresher) Fresh(ctx context.Context, tenantID string) (Credential, error) {
	if tenantID == "" {
		return Credential{}, ErrInvalidArgument
	}

	cred, err := r.store.Get(ctx, tenantID)
	if err != nil {
		return Credential{}, err
	}
	if cred.Valid(r.now()) {
		return cred, nil
	}
	return r.refreshShared(ctx, tenantID, false)
}

// ForceRefresh refreshes regardless of apparent validity. Used for the
// single retry after a 401 on a just-validated token. Concurrent forced
// refreshes for a tenant still collapse into one flight.
func (r *Refresher) ForceRefresh(ctx context.Context, tenantID string) (Credential, error) {
	if tenantID == "" {
		return Credential{}, ErrInvalidArgument
	}
	return r.refreshShared(ctx, tenantID, true)
}

func (r *Refresher) refreshShared(ctx context.Context, tenantID string, force bool) (Credential, error) {
	ch := r.group.DoChan(tenantID, func() (any, error) {
		// Re-read inside the flight: a prior winner may have already stored
		// a fresh credential while we queued.
		cred, err := r.store.Get(ctx, tenantID)
		if err != nil {
			return Credential{}, err
		}
		if !force && cred.Valid(r.now()) {
			return cred, nil
		}

		fresh, err := r.refresh(ctx, cred)
		if err != nil {
			return Credential{}, err
		}
		if err := r.store.Put(ctx, tenantID, fresh); err != nil {
			return Credential{}, err
		}
		return fresh, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}
