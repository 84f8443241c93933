package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldlink/internal/config"
)

const stateVersion = "v1"

// StateCodec produces the opaque value carried through the vendor's OAuth
// "state" parameter. The value binds the callback to the tenant/account that
// initiated the flow.
//
// The encoding is readable by us but tamper-evident: an HMAC-SHA256 signature
// covers the payload, and decoding rejects anything we did not sign.
// Single-use enforcement is the caller's job (see utils.ConsumeOnce); the
// codec itself is pure.
type StateCodec struct {
	secret []byte
	maxAge time.Duration

	// Now is injectable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

// DecodedState is the validated content of a state value.
type DecodedState struct {
	TenantID  string    `json:"tenant_id"`
	AccountID string    `json:"account_id"`
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
}

func NewStateCodec(cfg config.StateConfig) (*StateCodec, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: state secret is required", ErrConfiguration)
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &StateCodec{secret: []byte(cfg.Secret), maxAge: maxAge}, nil
}

func (c *StateCodec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode packs tenant, account, a fresh 128-bit nonce and the issue time
// into a signed state value: "v1.<payload>.<sig>".
func (c *StateCodec) Encode(tenantID, accountID string) (string, error) {
	if tenantID == "" || accountID == "" {
		return "", fmt.Errorf("oauth: tenant and account ids are required")
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("oauth: nonce generation failed: %w", err)
	}

	payload, err := json.Marshal(DecodedState{
		TenantID:  tenantID,
		AccountID: accountID,
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
		IssuedAt:  c.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return stateVersion + "." + encoded + "." + c.sign(encoded), nil
}

// Decode verifies and unpacks a state value. Any parse failure, bad
// signature, missing field, or stale issue time yields ErrInvalidState;
// no partial result is ever returned.
func (c *StateCodec) Decode(state string) (DecodedState, error) {
	parts := strings.Split(state, ".")
	if len(parts) != 3 || parts[0] != stateVersion {
		return DecodedState{}, ErrInvalidState
	}
	encoded, sig := parts[1], parts[2]

	if !hmac.Equal([]byte(c.sign(encoded)), []byte(sig)) {
		return DecodedState{}, ErrInvalidState
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return DecodedState{}, ErrInvalidState
	}

	var out DecodedState
	if err := json.Unmarshal(raw, &out); err != nil {
		return DecodedState{}, ErrInvalidState
	}
	if out.TenantID == "" || out.AccountID == "" || out.Nonce == "" || out.IssuedAt.IsZero() {
		return DecodedState{}, ErrInvalidState
	}

	now := c.now()
	if out.IssuedAt.After(now.Add(time.Minute)) {
		// Issued "in the future" beyond clock skew tolerance.
		return DecodedState{}, ErrInvalidState
	}
	if now.Sub(out.IssuedAt) > c.maxAge {
		return DecodedState{}, ErrInvalidState
	}
	return out, nil
}

// Validate decodes and additionally rejects states whose tenant does not
// match the request context.
func (c *StateCodec) Validate(state, tenantID string) (DecodedState, error) {
	out, err := c.Decode(state)
	if err != nil {
		return DecodedState{}, err
	}
	if out.TenantID != tenantID {
		return DecodedState{}, ErrInvalidState
	}
	return out, nil
}

func (c *StateCodec) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(stateVersion + "." + encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
