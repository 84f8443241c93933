package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogConnected records a completed authorization.
func (s *Service) LogConnected(ctx context.Context, tenantID, provider, actorUserID, vendorUserID string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeConnected,
		ActorUserID: actorUserID,
		Provider:    provider,
		Message:     "vendor account connected",
		Metadata:    fmt.Sprintf(`{"vendor_user_id":%q}`, vendorUserID),
	})
}

// LogDisconnected records a user-initiated disconnect.
func (s *Service) LogDisconnected(ctx context.Context, tenantID, provider, actorUserID string) error {
	return s.Append(ctx, Event{
		TenantID:    tenantID,
		Type:        EventTypeDisconnected,
		ActorUserID: actorUserID,
		Provider:    provider,
		Message:     "vendor account disconnected",
	})
}

// LogReauthRequired records a terminal refresh rejection.
func (s *Service) LogReauthRequired(ctx context.Context, tenantID, provider, detail string) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeReauthRequired,
		Provider: provider,
		Message:  "refresh token rejected, reauthorization required",
		Metadata: detail,
	})
}

// LogSyncCompleted records a finished sync run.
func (s *Service) LogSyncCompleted(ctx context.Context, tenantID, provider, trigger string, calls, messages int) error {
	return s.Append(ctx, Event{
		TenantID: tenantID,
		Type:     EventTypeSyncCompleted,
		Provider: provider,
		Message:  "sync completed",
		Metadata: fmt.Sprintf(`{"trigger":%q,"new_calls":%d,"new_messages":%d}`, trigger, calls, messages),
	})
}

// LogWebhookRejected records a webhook delivery that failed verification.
func (s *Service) LogWebhookRejected(ctx context.Context, tenantID, provider, ip, reason string) error {
	return s.Append(ctx, Event{
		TenantID:  tenantID,
		Type:      EventTypeWebhookRejected,
		Provider:  provider,
		IPAddress: ip,
		Message:   "webhook delivery rejected",
		Metadata:  fmt.Sprintf(`{"reason":%q}`, reason),
	})
}
