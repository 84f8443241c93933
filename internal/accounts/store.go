package accounts

import (
	"context"
	"errors"
	"time"

	"fieldlink/internal/normalize"
)

var (
	ErrNotFound        = errors.New("accounts: not found")
	ErrInvalidArgument = errors.New("accounts: invalid argument")
)

// Store persists vendor account records.
// Tenancy invariant: every method is tenant-scoped.
type Store interface {
	Get(ctx context.Context, tenantID string) (VendorAccount, error)
	Put(ctx context.Context, account VendorAccount) error
	UpdateStatus(ctx context.Context, tenantID string, status AccountStatus) error
	MarkSynced(ctx context.Context, tenantID string, at time.Time) error
}

// SeenIndex answers "has this vendor record already been ingested" and marks
// a batch as seen in the same step.
//
// Mark returns one bool per id: true means net-new. The same id asked twice
// reports true at most once.
type SeenIndex interface {
	Mark(ctx context.Context, tenantID, kind string, vendorIDs []string) ([]bool, error)
}

// RecordStore appends normalized records past the integration boundary and
// serves them back for reporting. Append must tolerate duplicates arriving
// despite the SeenIndex (the index may expire before the store does).
type RecordStore interface {
	AppendCall(ctx context.Context, rec normalize.CallRecord) error
	AppendMessage(ctx context.Context, rec normalize.MessageRecord) error
	ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.CallRecord, error)
	ListMessages(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.MessageRecord, error)
}
