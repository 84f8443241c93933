package credentials

import "time"

// Credential is the delegated vendor credential for one tenant.
//
// Invariants:
// - At most one live credential per (tenant, provider) pair.
// - A successful exchange atomically replaces the prior set; readers never
//   observe a half-written credential.
//
// AccessToken and RefreshToken are secrets. They must never be logged and
// never stored at rest in plaintext.
type Credential struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type"`
	Scope        string     `json:"scope,omitempty"`

	// ExpiresAt is the absolute expiry instant, computed at exchange/refresh
	// time from the vendor's expires_in. A nil expiry means "treat as
	// never-expiring until a 401 proves otherwise".
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	ObtainedAt time.Time `json:"obtained_at"`
}

// Valid reports whether the credential is usable at the given instant.
func (c Credential) Valid(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt == nil {
		return true
	}
	return now.Before(*c.ExpiresAt)
}

// Redacted returns a copy safe for logging: token material replaced,
// shape and expiry preserved.
func (c Credential) Redacted() Credential {
	out := c
	if out.AccessToken != "" {
		out.AccessToken = "[redacted]"
	}
	if out.RefreshToken != "" {
		out.RefreshToken = "[redacted]"
	}
	return out
}
