package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldlink/internal/config"
	"fieldlink/internal/credentials"
)

// maxErrorBody bounds how much of a vendor error response we keep for
// diagnostics.
const maxErrorBody = 8 << 10

// Doer is the injected HTTP transport. Production wires an *http.Client
// (behind RetryingDoer); tests substitute a fake so no real network is
// touched.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client drives the authorization-code protocol against one vendor's OAuth
// endpoints. It holds no per-tenant state; credentials flow in and out of
// every call explicitly.
type Client struct {
	cfg  config.VendorConfig
	doer Doer

	// Now is injectable for deterministic tests; nil means time.Now.
	Now func() time.Time
}

// NewClient validates the vendor configuration before anything else.
// A missing client id/secret/redirect URI is fatal at construction; failing
// here is cheaper than failing on the first callback.
func NewClient(cfg config.VendorConfig, doer Doer) (*Client, error) {
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, "client id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if cfg.RedirectURI == "" {
		missing = append(missing, "redirect uri")
	}
	if cfg.AuthURL == "" {
		missing = append(missing, "auth url")
	}
	if cfg.TokenURL == "" {
		missing = append(missing, "token url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Client{cfg: cfg, doer: doer}, nil
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// AuthorizationURL builds the vendor URL the end user is redirected to.
// Deterministic given the same state; every parameter is URL-encoded.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
		"state":         {state},
	}
	return c.cfg.AuthURL + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExchangeCode performs the authorization_code grant.
// On a non-2xx response it returns *TokenExchangeError carrying the vendor's
// raw body; it never retries (the caller decides whether a retry makes sense
// for a code that may already be consumed).
func (c *Client) ExchangeCode(ctx context.Context, code string) (credentials.Credential, error) {
	if code == "" {
		return credentials.Credential{}, fmt.Errorf("oauth: authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	resp, err := c.postForm(ctx, c.cfg.TokenURL, form)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("oauth: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return credentials.Credential{}, &TokenExchangeError{
			Status: resp.StatusCode,
			Body:   readErrorBody(resp.Body),
		}
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return credentials.Credential{}, fmt.Errorf("oauth: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return credentials.Credential{}, fmt.Errorf("oauth: vendor returned no access token")
	}
	return c.toCredential(tok, credentials.Credential{}), nil
}

// Refresh performs the refresh_token grant.
//
// Error contract:
//   - ErrNoRefreshToken when the credential has no refresh token at all.
//   - *RefreshRejectedError (wrapping ErrRefreshRejected) on a 4xx vendor
//     response other than 429; the tenant must re-authorize.
//   - A plain wrapped error for network failures, 429 and 5xx; those are
//     transient and eligible for retry at the transport layer only.
func (c *Client) Refresh(ctx context.Context, cred credentials.Credential) (credentials.Credential, error) {
	if cred.RefreshToken == "" {
		return credentials.Credential{}, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", cred.RefreshToken)

	resp, err := c.postForm(ctx, c.cfg.TokenURL, form)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("oauth: refresh request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		// Throttling says nothing about the refresh token; treat it like
		// a transient outage, not a rejection.
		return credentials.Credential{}, fmt.Errorf("oauth: refresh throttled with status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		return credentials.Credential{}, &RefreshRejectedError{
			Status: resp.StatusCode,
			Body:   readErrorBody(resp.Body),
		}
	default:
		return credentials.Credential{}, fmt.Errorf("oauth: refresh failed with status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return credentials.Credential{}, fmt.Errorf("oauth: decode refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return credentials.Credential{}, fmt.Errorf("oauth: vendor returned no access token on refresh")
	}
	return c.toCredential(tok, cred), nil
}

// Revoke tells the vendor to invalidate the credential. Best-effort: callers
// delete the local credential regardless of the outcome, because the user's
// intent to disconnect must not be blocked by vendor availability.
func (c *Client) Revoke(ctx context.Context, cred credentials.Credential) error {
	if c.cfg.RevokeURL == "" || cred.AccessToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", cred.AccessToken)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	resp, err := c.postForm(ctx, c.cfg.RevokeURL, form)
	if err != nil {
		return fmt.Errorf("oauth: revoke request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("oauth: revoke failed with status %d", resp.StatusCode)
	}
	return nil
}

// Profile is the vendor's view of the connected account, fetched once after
// a successful exchange.
type Profile struct {
	ID    string `json:"id"`
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
}

// UserID returns the stable vendor-side account identifier.
func (p Profile) UserID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Sub
}

// UserInfo fetches the vendor account profile with a bearer token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (Profile, error) {
	if c.cfg.UserInfoURL == "" {
		return Profile{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, http.NoBody)
	if err != nil {
		return Profile{}, fmt.Errorf("oauth: create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("oauth: userinfo failed with status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	return p, nil
}

// toCredential computes the absolute expiry at the moment of exchange or
// refresh. Deriving it lazily from expires_in later would compound clock
// drift across refresh cycles.
func (c *Client) toCredential(tok tokenResponse, prev credentials.Credential) credentials.Credential {
	now := c.now().UTC()
	cred := credentials.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        tok.Scope,
		ObtainedAt:   now,
	}
	if cred.TokenType == "" {
		cred.TokenType = "bearer"
	}
	if cred.RefreshToken == "" {
		// Vendors commonly omit the refresh token on refresh; the prior one
		// stays live.
		cred.RefreshToken = prev.RefreshToken
	}
	if tok.ExpiresIn > 0 {
		exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
		cred.ExpiresAt = &exp
	}
	return cred
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.doer.Do(req)
}

func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
