package accounts

import "time"

// AccountStatus is the lifecycle of a tenant's vendor connection.
//
// pending:      record created, OAuth not finished yet.
// connected:    tokens stored and a profile fetch succeeded.
// needs_reauth: the vendor rejected our refresh token; only a new
//               authorization flow can recover.
// disconnected: the user disconnected; credential deleted.
type AccountStatus string

const (
	StatusPending      AccountStatus = "pending"
	StatusConnected    AccountStatus = "connected"
	StatusNeedsReauth  AccountStatus = "needs_reauth"
	StatusDisconnected AccountStatus = "disconnected"
)

// VendorAccount is the tenant-scoped vendor connection record.
// Token material is NOT stored here; that belongs to internal/credentials.
type VendorAccount struct {
	TenantID string        `json:"tenant_id" db:"tenant_id"`
	Provider string        `json:"provider" db:"provider"`
	Status   AccountStatus `json:"status" db:"status"`

	// Vendor-side identity captured from the profile fetch.
	VendorUserID string `json:"vendor_user_id,omitempty" db:"vendor_user_id"`
	DisplayName  string `json:"display_name,omitempty" db:"display_name"`
	Email        string `json:"email,omitempty" db:"email"`

	LastSyncAt *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Connected reports whether API calls should be attempted for this account.
func (a VendorAccount) Connected() bool {
	return a.Status == StatusConnected
}
