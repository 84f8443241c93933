package oauth

import (
	"context"

	"golang.org/x/oauth2"

	"fieldlink/internal/credentials"
)

// CredentialSource hands out a credential guaranteed valid for immediate
// use. Implemented by the integration facade on top of the refresher.
type CredentialSource interface {
	FreshCredential(ctx context.Context, tenantID string) (credentials.Credential, error)
}

// tokenSource adapts a CredentialSource to oauth2.TokenSource so vendor SDK
// clients built on golang.org/x/oauth2 can reuse our token lifecycle instead
// of running their own.
type tokenSource struct {
	ctx      context.Context
	tenantID string
	src      CredentialSource
}

// NewTokenSource wraps a tenant's credentials as an oauth2.TokenSource.
func NewTokenSource(ctx context.Context, tenantID string, src CredentialSource) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, tenantID: tenantID, src: src}
}

func (t *tokenSource) Token() (*oauth2.Token, error) {
	cred, err := t.src.FreshCredential(t.ctx, t.tenantID)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
	}
	if cred.ExpiresAt != nil {
		tok.Expiry = *cred.ExpiresAt
	}
	return tok, nil
}
