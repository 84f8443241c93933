package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldlink/internal/normalize"
)

// PostgresStore keeps one vendor account row per tenant.
//
// NOTE: assumes the following table exists:
//
//	CREATE TABLE vendor_accounts (
//	    tenant_id      TEXT PRIMARY KEY,
//	    provider       TEXT NOT NULL,
//	    status         TEXT NOT NULL,
//	    vendor_user_id TEXT,
//	    display_name   TEXT,
//	    email          TEXT,
//	    last_sync_at   TIMESTAMPTZ,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("accounts: db is required")
	}
	return &PostgresStore{db: db, clock: time.Now}, nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID string) (VendorAccount, error) {
	if tenantID == "" {
		return VendorAccount{}, ErrInvalidArgument
	}
	const q = `
SELECT tenant_id, provider, status, vendor_user_id, display_name, email, last_sync_at, created_at, updated_at
FROM vendor_accounts
WHERE tenant_id = $1
`
	var (
		a            VendorAccount
		vendorUserID sql.NullString
		displayName  sql.NullString
		email        sql.NullString
		lastSync     sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, q, tenantID).Scan(
		&a.TenantID,
		&a.Provider,
		&a.Status,
		&vendorUserID,
		&displayName,
		&email,
		&lastSync,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VendorAccount{}, ErrNotFound
		}
		return VendorAccount{}, err
	}
	a.VendorUserID = vendorUserID.String
	a.DisplayName = displayName.String
	a.Email = email.String
	if lastSync.Valid {
		t := lastSync.Time
		a.LastSyncAt = &t
	}
	return a, nil
}

func (s *PostgresStore) Put(ctx context.Context, account VendorAccount) error {
	if account.TenantID == "" || account.Provider == "" || account.Status == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	const q = `
INSERT INTO vendor_accounts
    (tenant_id, provider, status, vendor_user_id, display_name, email, last_sync_at, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $8)
ON CONFLICT (tenant_id) DO UPDATE SET
    provider       = EXCLUDED.provider,
    status         = EXCLUDED.status,
    vendor_user_id = EXCLUDED.vendor_user_id,
    display_name   = EXCLUDED.display_name,
    email          = EXCLUDED.email,
    updated_at     = EXCLUDED.updated_at
`
	var lastSync any
	if account.LastSyncAt != nil {
		lastSync = account.LastSyncAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		account.TenantID,
		account.Provider,
		account.Status,
		account.VendorUserID,
		account.DisplayName,
		account.Email,
		lastSync,
		now,
	)
	return err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, tenantID string, status AccountStatus) error {
	if tenantID == "" || status == "" {
		return ErrInvalidArgument
	}
	const q = `UPDATE vendor_accounts SET status = $2, updated_at = $3 WHERE tenant_id = $1`
	res, err := s.db.ExecContext(ctx, q, tenantID, status, s.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, tenantID string, at time.Time) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	const q = `UPDATE vendor_accounts SET last_sync_at = $2, updated_at = $3 WHERE tenant_id = $1`
	res, err := s.db.ExecContext(ctx, q, tenantID, at.UTC(), s.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresRecordStore persists normalized call and message records.
//
// NOTE: assumes the following tables exist:
//
//	CREATE TABLE call_records (
//	    tenant_id        TEXT NOT NULL,
//	    vendor_id        TEXT NOT NULL,
//	    direction        TEXT NOT NULL,
//	    from_number      TEXT NOT NULL,
//	    to_number        TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    duration_seconds INT  NOT NULL DEFAULT 0,
//	    recording_url    TEXT,
//	    voicemail_url    TEXT,
//	    customer_name    TEXT NOT NULL,
//	    started_at       TIMESTAMPTZ,
//	    PRIMARY KEY (tenant_id, vendor_id)
//	);
//
//	CREATE TABLE message_records (
//	    tenant_id     TEXT NOT NULL,
//	    vendor_id     TEXT NOT NULL,
//	    direction     TEXT NOT NULL,
//	    from_number   TEXT NOT NULL,
//	    to_number     TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    body          TEXT NOT NULL DEFAULT '',
//	    customer_name TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ,
//	    PRIMARY KEY (tenant_id, vendor_id)
//	);
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) (*PostgresRecordStore, error) {
	if db == nil {
		return nil, errors.New("accounts: db is required")
	}
	return &PostgresRecordStore{db: db}, nil
}

// AppendCall inserts the record, silently skipping duplicates. Duplicates
// can still reach this point when the seen index has expired.
func (s *PostgresRecordStore) AppendCall(ctx context.Context, rec normalize.CallRecord) error {
	if rec.TenantID == "" || rec.VendorID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO call_records
    (tenant_id, vendor_id, direction, from_number, to_number, status, duration_seconds,
     recording_url, voicemail_url, customer_name, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
ON CONFLICT (tenant_id, vendor_id) DO NOTHING
`
	var started any
	if !rec.StartedAt.IsZero() {
		started = rec.StartedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.TenantID,
		rec.VendorID,
		rec.Direction,
		rec.From,
		rec.To,
		rec.Status,
		rec.DurationSeconds,
		rec.RecordingURL,
		rec.VoicemailURL,
		rec.CustomerName,
		started,
	)
	return err
}

func (s *PostgresRecordStore) AppendMessage(ctx context.Context, rec normalize.MessageRecord) error {
	if rec.TenantID == "" || rec.VendorID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO message_records
    (tenant_id, vendor_id, direction, from_number, to_number, status, body, customer_name, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (tenant_id, vendor_id) DO NOTHING
`
	var created any
	if !rec.CreatedAt.IsZero() {
		created = rec.CreatedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.TenantID,
		rec.VendorID,
		rec.Direction,
		rec.From,
		rec.To,
		rec.Status,
		rec.Body,
		rec.CustomerName,
		created,
	)
	return err
}

func (s *PostgresRecordStore) ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.CallRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT vendor_id, direction, from_number, to_number, status, duration_seconds,
       recording_url, voicemail_url, customer_name, started_at
FROM call_records
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR started_at >= $2)
  AND ($3::timestamptz IS NULL OR started_at < $3)
ORDER BY started_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, tenantID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]normalize.CallRecord, 0)
	for rows.Next() {
		var (
			rec          normalize.CallRecord
			recordingURL sql.NullString
			voicemailURL sql.NullString
			startedAt    sql.NullTime
		)
		if err := rows.Scan(
			&rec.VendorID,
			&rec.Direction,
			&rec.From,
			&rec.To,
			&rec.Status,
			&rec.DurationSeconds,
			&recordingURL,
			&voicemailURL,
			&rec.CustomerName,
			&startedAt,
		); err != nil {
			return nil, err
		}
		rec.TenantID = tenantID
		rec.RecordingURL = recordingURL.String
		rec.VoicemailURL = voicemailURL.String
		if startedAt.Valid {
			rec.StartedAt = startedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresRecordStore) ListMessages(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.MessageRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT vendor_id, direction, from_number, to_number, status, body, customer_name, created_at
FROM message_records
WHERE tenant_id = $1
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, tenantID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]normalize.MessageRecord, 0)
	for rows.Next() {
		var (
			rec       normalize.MessageRecord
			createdAt sql.NullTime
		)
		if err := rows.Scan(
			&rec.VendorID,
			&rec.Direction,
			&rec.From,
			&rec.To,
			&rec.Status,
			&rec.Body,
			&rec.CustomerName,
			&createdAt,
		); err != nil {
			return nil, err
		}
		rec.TenantID = tenantID
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
