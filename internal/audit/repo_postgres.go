package audit

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo appends audit events to an insert-only table.
//
// NOTE: assumes the following table exists:
//
//	CREATE TABLE audit_events (
//	    id            TEXT PRIMARY KEY,
//	    tenant_id     TEXT NOT NULL,
//	    type          TEXT NOT NULL,
//	    actor_user_id TEXT,
//	    actor_role    TEXT,
//	    ip_address    TEXT,
//	    provider      TEXT,
//	    message       TEXT,
//	    metadata      TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("audit: db is required")
	}
	return &PostgresRepo{db: db}, nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events
    (id, tenant_id, type, actor_user_id, actor_role, ip_address, provider, message, metadata, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.Provider,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
