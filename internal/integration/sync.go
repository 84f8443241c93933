package integration

import (
	"context"
	"errors"
	"log/slog"

	"fieldlink/internal/credentials"
	"fieldlink/internal/normalize"
)

// Trigger tags where a sync run came from. All triggers share one pipeline.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerWebhook   Trigger = "webhook"
	TriggerManual    Trigger = "manual"
)

// SyncResult counts what a run actually ingested, after dedup.
type SyncResult struct {
	NewCalls    int `json:"new_calls"`
	NewMessages int `json:"new_messages"`
}

// Sync pulls the tenant's calls and messages from the vendor, normalizes
// them and persists whatever the dedup index has not seen. Cancellation is
// honored between pages; records already appended stay.
func (f *Facade) Sync(ctx context.Context, tenantID string, trigger Trigger) (SyncResult, error) {
	var result SyncResult

	calls, demo, err := f.listCalls(ctx, tenantID)
	if err != nil {
		return result, err
	}
	result.NewCalls = len(calls)

	messages, msgDemo, err := f.listMessages(ctx, tenantID)
	if err != nil {
		return result, err
	}
	result.NewMessages = len(messages)

	// A demo-backed run synced nothing real; recording it would fabricate
	// history for a tenant that never connected.
	if demo || msgDemo {
		return result, nil
	}

	if err := f.deps.Accounts.MarkSynced(ctx, tenantID, f.now()); err != nil {
		f.deps.Logger.Warn("failed to record sync time",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
	}
	f.auditBestEffort(ctx, func() error {
		return f.deps.Audit.LogSyncCompleted(ctx, tenantID, f.provider(), string(trigger), result.NewCalls, result.NewMessages)
	})
	return result, nil
}

// ListCalls fetches the tenant's call log from the vendor, normalizes it and
// returns the net-new records. Tenants without a stored credential get the
// demo dataset instead.
func (f *Facade) ListCalls(ctx context.Context, tenantID string) ([]normalize.CallRecord, error) {
	records, _, err := f.listCalls(ctx, tenantID)
	return records, err
}

// listCalls additionally reports whether the demo dataset was served. Demo
// records are normalized but never marked seen or persisted: they must keep
// appearing until the tenant connects, and must never surface in reporting.
func (f *Facade) listCalls(ctx context.Context, tenantID string) ([]normalize.CallRecord, bool, error) {
	if tenantID == "" {
		return nil, false, credentials.ErrInvalidArgument
	}

	var vendorCalls []normalize.VendorCall
	err := f.WithFreshToken(ctx, tenantID, func(ctx context.Context, accessToken string) error {
		vendorCalls = vendorCalls[:0]
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := f.deps.API.ListCalls(ctx, tenantID, accessToken, cursor)
			if err != nil {
				return err
			}
			vendorCalls = append(vendorCalls, page.Records...)
			if page.NextCursor == "" {
				return nil
			}
			cursor = page.NextCursor
		}
	})
	if errors.Is(err, credentials.ErrNotFound) {
		return f.demoCallRecords(tenantID), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	records, err := f.ingestCalls(ctx, tenantID, vendorCalls)
	return records, false, err
}

// ListMessages is the message-side twin of ListCalls.
func (f *Facade) ListMessages(ctx context.Context, tenantID string) ([]normalize.MessageRecord, error) {
	records, _, err := f.listMessages(ctx, tenantID)
	return records, err
}

func (f *Facade) listMessages(ctx context.Context, tenantID string) ([]normalize.MessageRecord, bool, error) {
	if tenantID == "" {
		return nil, false, credentials.ErrInvalidArgument
	}

	var vendorMsgs []normalize.VendorMessage
	err := f.WithFreshToken(ctx, tenantID, func(ctx context.Context, accessToken string) error {
		vendorMsgs = vendorMsgs[:0]
		cursor := ""
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := f.deps.API.ListMessages(ctx, tenantID, accessToken, cursor)
			if err != nil {
				return err
			}
			vendorMsgs = append(vendorMsgs, page.Records...)
			if page.NextCursor == "" {
				return nil
			}
			cursor = page.NextCursor
		}
	})
	if errors.Is(err, credentials.ErrNotFound) {
		return f.demoMessageRecords(tenantID), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	records, err := f.ingestMessages(ctx, tenantID, vendorMsgs)
	return records, false, err
}

// ingestCalls runs the shared pipeline: normalize, stamp the tenant, drop
// already-seen ids, persist the rest. Warnings are logged, never fatal.
func (f *Facade) ingestCalls(ctx context.Context, tenantID string, vendorCalls []normalize.VendorCall) ([]normalize.CallRecord, error) {
	if len(vendorCalls) == 0 {
		return nil, nil
	}

	records := make([]normalize.CallRecord, 0, len(vendorCalls))
	ids := make([]string, 0, len(vendorCalls))
	for _, vc := range vendorCalls {
		rec, warnings := normalize.NormalizeCall(vc)
		f.logWarnings(tenantID, "call", warnings)
		rec.TenantID = tenantID
		records = append(records, rec)
		ids = append(ids, rec.VendorID)
	}

	netNew, err := f.deps.Seen.Mark(ctx, tenantID, "call", ids)
	if err != nil {
		return nil, err
	}

	out := make([]normalize.CallRecord, 0, len(records))
	for i, rec := range records {
		if !netNew[i] {
			continue
		}
		if err := f.deps.Records.AppendCall(ctx, rec); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *Facade) ingestMessages(ctx context.Context, tenantID string, vendorMsgs []normalize.VendorMessage) ([]normalize.MessageRecord, error) {
	if len(vendorMsgs) == 0 {
		return nil, nil
	}

	records := make([]normalize.MessageRecord, 0, len(vendorMsgs))
	ids := make([]string, 0, len(vendorMsgs))
	for _, vm := range vendorMsgs {
		rec, warnings := normalize.NormalizeMessage(vm)
		f.logWarnings(tenantID, "message", warnings)
		rec.TenantID = tenantID
		records = append(records, rec)
		ids = append(ids, rec.VendorID)
	}

	netNew, err := f.deps.Seen.Mark(ctx, tenantID, "message", ids)
	if err != nil {
		return nil, err
	}

	out := make([]normalize.MessageRecord, 0, len(records))
	for i, rec := range records {
		if !netNew[i] {
			continue
		}
		if err := f.deps.Records.AppendMessage(ctx, rec); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *Facade) logWarnings(tenantID, kind string, warnings []normalize.Warning) {
	for _, w := range warnings {
		f.deps.Logger.Warn("normalization warning",
			slog.String("tenant_id", tenantID),
			slog.String("kind", kind),
			slog.String("vendor_id", w.VendorID),
			slog.String("field", w.Field),
			slog.String("reason", w.Reason),
		)
	}
}
