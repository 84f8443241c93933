// Package integration owns the tenant-facing surface of the vendor
// integration: the authorization lifecycle, token-backed API access, record
// ingestion and the webhook endpoint. Everything below it (oauth protocol,
// credential storage, normalization) is tenant-blind plumbing; this package
// stitches it together per tenant.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fieldlink/internal/accounts"
	"fieldlink/internal/audit"
	"fieldlink/internal/config"
	"fieldlink/internal/credentials"
	"fieldlink/internal/oauth"
)

// ConsumeStateFunc marks an OAuth state value as used. It must return true
// exactly once per value within the ttl window. Production wires
// pkg/utils.ConsumeOnce over redis; tests use an in-memory equivalent.
type ConsumeStateFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)

// Deps carries the facade's collaborators. All fields are required unless
// noted.
type Deps struct {
	Vendor config.VendorConfig

	OAuth  *oauth.Client
	States *oauth.StateCodec
	API    *VendorAPI

	Credentials credentials.Store
	Refresher   *credentials.Refresher
	Accounts    accounts.Store
	Seen        accounts.SeenIndex
	Records     accounts.RecordStore

	ConsumeState ConsumeStateFunc
	StateTTL     time.Duration

	Audit  *audit.Service
	Logger *slog.Logger
}

// Facade coordinates the vendor integration for all tenants.
type Facade struct {
	deps Deps

	// Now is injectable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

func NewFacade(deps Deps) (*Facade, error) {
	var missing []string
	if deps.OAuth == nil {
		missing = append(missing, "oauth client")
	}
	if deps.States == nil {
		missing = append(missing, "state codec")
	}
	if deps.API == nil {
		missing = append(missing, "vendor api")
	}
	if deps.Credentials == nil {
		missing = append(missing, "credential store")
	}
	if deps.Refresher == nil {
		missing = append(missing, "refresher")
	}
	if deps.Accounts == nil {
		missing = append(missing, "account store")
	}
	if deps.Seen == nil {
		missing = append(missing, "seen index")
	}
	if deps.Records == nil {
		missing = append(missing, "record store")
	}
	if deps.ConsumeState == nil {
		missing = append(missing, "state consumer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("integration: facade missing %v", missing)
	}
	if deps.StateTTL <= 0 {
		deps.StateTTL = 10 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Facade{deps: deps}, nil
}

func (f *Facade) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Facade) provider() string {
	if f.deps.Vendor.Provider != "" {
		return f.deps.Vendor.Provider
	}
	return "vendor"
}

// GenerateAuthURL starts the authorization flow for a tenant. The account
// record is created (or reset) in pending; the returned URL carries a signed
// state bound to the tenant.
func (f *Facade) GenerateAuthURL(ctx context.Context, tenantID, accountID string) (string, error) {
	if tenantID == "" {
		return "", accounts.ErrInvalidArgument
	}

	acct, err := f.deps.Accounts.Get(ctx, tenantID)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		acct = accounts.VendorAccount{
			TenantID: tenantID,
			Provider: f.provider(),
			Status:   accounts.StatusPending,
		}
	case err != nil:
		return "", err
	default:
		acct.Status = accounts.StatusPending
	}
	if err := f.deps.Accounts.Put(ctx, acct); err != nil {
		return "", err
	}

	state, err := f.deps.States.Encode(tenantID, accountID)
	if err != nil {
		return "", err
	}
	return f.deps.OAuth.AuthorizationURL(state), nil
}

// CompleteAuthorization finishes the callback leg: the state must decode,
// match the tenant and never have been seen before; only then is the code
// exchanged. A stored credential plus a profile fetch flips the account to
// connected.
func (f *Facade) CompleteAuthorization(ctx context.Context, tenantID, code, state string) (accounts.VendorAccount, error) {
	if _, err := f.deps.States.Validate(state, tenantID); err != nil {
		return accounts.VendorAccount{}, err
	}

	fresh, err := f.deps.ConsumeState(ctx, "oauthstate:"+state, f.deps.StateTTL)
	if err != nil {
		return accounts.VendorAccount{}, fmt.Errorf("integration: state consume: %w", err)
	}
	if !fresh {
		return accounts.VendorAccount{}, fmt.Errorf("%w: state already used", oauth.ErrInvalidState)
	}

	cred, err := f.deps.OAuth.ExchangeCode(ctx, code)
	if err != nil {
		return accounts.VendorAccount{}, err
	}
	if err := f.deps.Credentials.Put(ctx, tenantID, cred); err != nil {
		return accounts.VendorAccount{}, err
	}

	acct, err := f.deps.Accounts.Get(ctx, tenantID)
	if errors.Is(err, accounts.ErrNotFound) {
		acct = accounts.VendorAccount{TenantID: tenantID, Provider: f.provider()}
	} else if err != nil {
		return accounts.VendorAccount{}, err
	}

	// Profile fetch is best-effort: the tokens are already stored, so a
	// flaky userinfo endpoint must not undo the connection.
	if profile, err := f.deps.OAuth.UserInfo(ctx, cred.AccessToken); err != nil {
		f.deps.Logger.Warn("userinfo fetch failed after exchange",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
	} else {
		acct.VendorUserID = profile.UserID()
		acct.DisplayName = profile.Name
		acct.Email = profile.Email
	}

	acct.Status = accounts.StatusConnected
	if err := f.deps.Accounts.Put(ctx, acct); err != nil {
		return accounts.VendorAccount{}, err
	}

	f.auditBestEffort(ctx, func() error {
		return f.deps.Audit.LogConnected(ctx, tenantID, f.provider(), "", acct.VendorUserID)
	})
	return acct, nil
}

// IsAuthenticated reports whether the tenant holds a currently valid
// credential. No refresh is attempted.
func (f *Facade) IsAuthenticated(ctx context.Context, tenantID string) (bool, error) {
	return credentials.IsValid(ctx, f.deps.Credentials, tenantID, f.now())
}

// Account returns the tenant's vendor account record.
func (f *Facade) Account(ctx context.Context, tenantID string) (accounts.VendorAccount, error) {
	return f.deps.Accounts.Get(ctx, tenantID)
}

// FreshCredential returns a credential valid at the time of return,
// refreshing if needed. Satisfies oauth.CredentialSource.
//
// A terminal refresh rejection flips the account to needs_reauth before the
// error is surfaced.
func (f *Facade) FreshCredential(ctx context.Context, tenantID string) (credentials.Credential, error) {
	cred, err := f.deps.Refresher.Fresh(ctx, tenantID)
	if err != nil {
		f.handleRefreshError(ctx, tenantID, err)
		return credentials.Credential{}, err
	}
	return cred, nil
}

// WithFreshToken runs action with a valid access token. At most one
// coordinated refresh happens up front; if the action still reports a 401
// the token is force-refreshed exactly once and the action retried once.
func (f *Facade) WithFreshToken(ctx context.Context, tenantID string, action func(ctx context.Context, accessToken string) error) error {
	cred, err := f.FreshCredential(ctx, tenantID)
	if err != nil {
		return err
	}

	err = action(ctx, cred.AccessToken)
	if err == nil || !isUnauthorized(err) {
		return err
	}

	// The vendor disagrees with our validity check. One forced refresh, one
	// retry, then the caller gets whatever the vendor said.
	cred, refreshErr := f.deps.Refresher.ForceRefresh(ctx, tenantID)
	if refreshErr != nil {
		f.handleRefreshError(ctx, tenantID, refreshErr)
		return refreshErr
	}
	return action(ctx, cred.AccessToken)
}

// SendMessage sends an outbound message through the vendor and returns the
// vendor's confirmation id. Failures come back as *SendFailedError with the
// body dropped.
func (f *Facade) SendMessage(ctx context.Context, tenantID, to, body string) (string, error) {
	if to == "" || body == "" {
		return "", fmt.Errorf("integration: to and body are required")
	}

	var vendorID string
	err := f.WithFreshToken(ctx, tenantID, func(ctx context.Context, accessToken string) error {
		id, err := f.deps.API.SendMessage(ctx, tenantID, accessToken, to, body)
		if err != nil {
			return err
		}
		vendorID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return "", ErrNotConnected
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return "", &SendFailedError{To: to, Status: apiErr.Status, Reason: "vendor rejected message"}
		}
		return "", &SendFailedError{To: to, Reason: err.Error()}
	}
	return vendorID, nil
}

// Disconnect severs the tenant's vendor connection. Revocation is
// best-effort; local deletion always happens.
func (f *Facade) Disconnect(ctx context.Context, tenantID, actorUserID string) error {
	cred, err := f.deps.Credentials.Get(ctx, tenantID)
	switch {
	case errors.Is(err, credentials.ErrNotFound):
		// Nothing stored; still normalize the account status below.
	case err != nil:
		return err
	default:
		if err := f.deps.OAuth.Revoke(ctx, cred); err != nil {
			f.deps.Logger.Warn("vendor revoke failed, deleting local credential anyway",
				slog.String("tenant_id", tenantID), slog.Any("error", err))
		}
		if err := f.deps.Credentials.Delete(ctx, tenantID); err != nil {
			return err
		}
	}

	if err := f.deps.Accounts.UpdateStatus(ctx, tenantID, accounts.StatusDisconnected); err != nil && !errors.Is(err, accounts.ErrNotFound) {
		return err
	}

	f.auditBestEffort(ctx, func() error {
		return f.deps.Audit.LogDisconnected(ctx, tenantID, f.provider(), actorUserID)
	})
	return nil
}

func (f *Facade) handleRefreshError(ctx context.Context, tenantID string, err error) {
	if !errors.Is(err, oauth.ErrRefreshRejected) {
		return
	}
	if uerr := f.deps.Accounts.UpdateStatus(ctx, tenantID, accounts.StatusNeedsReauth); uerr != nil && !errors.Is(uerr, accounts.ErrNotFound) {
		f.deps.Logger.Error("failed to mark account needs_reauth",
			slog.String("tenant_id", tenantID), slog.Any("error", uerr))
	}
	f.auditBestEffort(ctx, func() error {
		return f.deps.Audit.LogReauthRequired(ctx, tenantID, f.provider(), "")
	})
}

// auditBestEffort logs audit failures instead of propagating them; audit
// must never block the user-facing flow.
func (f *Facade) auditBestEffort(ctx context.Context, fn func() error) {
	if f.deps.Audit == nil {
		return
	}
	if err := fn(); err != nil {
		f.deps.Logger.Warn("audit append failed", slog.Any("error", err))
	}
}
