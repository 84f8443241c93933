package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldlink/internal/credentials"
)

type staticCredentialSource struct {
	cred     credentials.Credential
	err      error
	tenantID string
}

func (s *staticCredentialSource) FreshCredential(ctx context.Context, tenantID string) (credentials.Credential, error) {
	s.tenantID = tenantID
	if s.err != nil {
		return credentials.Credential{}, s.err
	}
	return s.cred, nil
}

func TestTokenSourceMapsCredential(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	src := &staticCredentialSource{cred: credentials.Credential{
		AccessToken: "at-fresh",
		TokenType:   "Bearer",
		ExpiresAt:   &expiry,
	}}

	tok, err := NewTokenSource(context.Background(), "t1", src).Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "at-fresh" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if !tok.Expiry.Equal(expiry) {
		t.Fatalf("expected expiry %v, got %v", expiry, tok.Expiry)
	}
	if src.tenantID != "t1" {
		t.Fatalf("source called for tenant %q", src.tenantID)
	}
}

func TestTokenSourceWithoutExpiry(t *testing.T) {
	src := &staticCredentialSource{cred: credentials.Credential{
		AccessToken: "at-fresh",
		TokenType:   "Bearer",
	}}

	tok, err := NewTokenSource(context.Background(), "t1", src).Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if !tok.Expiry.IsZero() {
		t.Fatalf("expected zero expiry for non-expiring credential, got %v", tok.Expiry)
	}
}

func TestTokenSourcePropagatesSourceError(t *testing.T) {
	src := &staticCredentialSource{err: credentials.ErrNotFound}

	_, err := NewTokenSource(context.Background(), "t1", src).Token()
	if !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
