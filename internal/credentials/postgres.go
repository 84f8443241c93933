package credentials

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists one credential row per (tenant, provider).
//
// NOTE: This store assumes the following table exists:
//
//	CREATE TABLE vendor_credentials (
//	    tenant_id      TEXT NOT NULL,
//	    provider       TEXT NOT NULL,
//	    access_token   TEXT NOT NULL,   -- AES-GCM, base64
//	    refresh_token  TEXT,            -- AES-GCM, base64
//	    token_type     TEXT NOT NULL DEFAULT 'bearer',
//	    scope          TEXT,
//	    expires_at     TIMESTAMPTZ,
//	    obtained_at    TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, provider)
//	);
//
// Token columns hold ciphertext only; the Cipher is required.
type PostgresStore struct {
	db       *sql.DB
	provider string
	cipher   *Cipher
	clock    func() time.Time
}

func NewPostgresStore(db *sql.DB, provider string, cipher *Cipher) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("credentials: db is required")
	}
	if provider == "" {
		return nil, errors.New("credentials: provider is required")
	}
	if cipher == nil {
		return nil, errors.New("credentials: cipher is required")
	}
	return &PostgresStore{db: db, provider: provider, cipher: cipher, clock: time.Now}, nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (Credential, error) {
	if tenantID == "" {
		return Credential{}, ErrInvalidArgument
	}

	const q = `
SELECT access_token, refresh_token, token_type, scope, expires_at, obtained_at
FROM vendor_credentials
WHERE tenant_id = $1 AND provider = $2
`
	var (
		cred         Credential
		encAccess    string
		encRefresh   sql.NullString
		scope        sql.NullString
		expiresAt    sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, q, tenantID, s.provider).Scan(
		&encAccess,
		&encRefresh,
		&cred.TokenType,
		&scope,
		&expiresAt,
		&cred.ObtainedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}

	access, err := s.cipher.Decrypt(encAccess)
	if err != nil {
		return Credential{}, err
	}
	cred.AccessToken = access
	if encRefresh.Valid {
		refresh, err := s.cipher.Decrypt(encRefresh.String)
		if err != nil {
			return Credential{}, err
		}
		cred.RefreshToken = refresh
	}
	if scope.Valid {
		cred.Scope = scope.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		cred.ExpiresAt = &t
	}
	return cred, nil
}

// Put replaces the stored credential in a single upsert.
// The swap is atomic: a concurrent Get sees either the old row or the new
// row, never a mix.
func (s *PostgresStore) Put(ctx context.Context, tenantID string, cred Credential) error {
	if tenantID == "" || cred.AccessToken == "" {
		return ErrInvalidArgument
	}

	encAccess, err := s.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	encRefresh, err := s.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}

	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	obtained := cred.ObtainedAt
	if obtained.IsZero() {
		obtained = s.clock().UTC()
	}

	const q = `
INSERT INTO vendor_credentials
    (tenant_id, provider, access_token, refresh_token, token_type, scope, expires_at, obtained_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9)
ON CONFLICT (tenant_id, provider) DO UPDATE SET
    access_token  = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_type    = EXCLUDED.token_type,
    scope         = EXCLUDED.scope,
    expires_at    = EXCLUDED.expires_at,
    obtained_at   = EXCLUDED.obtained_at,
    updated_at    = EXCLUDED.updated_at
`
	var expires any
	if cred.ExpiresAt != nil {
		expires = cred.ExpiresAt.UTC()
	}
	_, err = s.db.ExecContext(ctx, q,
		tenantID,
		s.provider,
		encAccess,
		encRefresh,
		tokenType,
		cred.Scope,
		expires,
		obtained,
		s.clock().UTC(),
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	const q = `DELETE FROM vendor_credentials WHERE tenant_id = $1 AND provider = $2`
	_, err := s.db.ExecContext(ctx, q, tenantID, s.provider)
	return err
}
