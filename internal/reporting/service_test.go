package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldlink/internal/accounts"
	"fieldlink/internal/normalize"
)

func seedCalls(t *testing.T, store *accounts.MemoryRecordStore) {
	t.Helper()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	recs := []normalize.CallRecord{
		{VendorID: "c-1", TenantID: "t1", Direction: normalize.DirectionInbound, Status: normalize.CallStatusCompleted, DurationSeconds: 120, RecordingURL: "https://x/r1", StartedAt: base},
		{VendorID: "c-2", TenantID: "t1", Direction: normalize.DirectionOutbound, Status: normalize.CallStatusNoAnswer, StartedAt: base.Add(time.Hour)},
		{VendorID: "c-3", TenantID: "t1", Direction: normalize.DirectionInbound, Status: normalize.CallStatusVoicemail, VoicemailURL: "https://x/v1", StartedAt: base.Add(2 * time.Hour)},
		{VendorID: "c-4", TenantID: "t2", Direction: normalize.DirectionInbound, Status: normalize.CallStatusCompleted, DurationSeconds: 60, StartedAt: base},
	}
	for _, r := range recs {
		if r.CustomerName == "" {
			r.CustomerName = normalize.UnknownValue
		}
		if r.From == "" {
			r.From = normalize.UnknownValue
		}
		if r.To == "" {
			r.To = normalize.UnknownValue
		}
		if err := store.AppendCall(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestCallsSummaryAggregatesTenantOnly(t *testing.T) {
	store := accounts.NewMemoryRecordStore()
	seedCalls(t, store)
	svc := NewService(store)

	sum, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		TenantID: "t1",
		Range: TimeRange{
			From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if sum.TotalCalls != 3 {
		t.Fatalf("total = %d, want 3 (tenant isolation)", sum.TotalCalls)
	}
	if sum.InboundCalls != 2 || sum.OutboundCalls != 1 {
		t.Fatalf("directions = %d/%d", sum.InboundCalls, sum.OutboundCalls)
	}
	if sum.CompletedCalls != 1 || sum.NoAnswerCalls != 1 || sum.VoicemailCalls != 1 {
		t.Fatalf("status counts = %+v", sum)
	}
	if sum.TotalDurationSeconds != 120 {
		t.Fatalf("duration = %d", sum.TotalDurationSeconds)
	}
	if sum.AverageDurationSeconds != 40 {
		t.Fatalf("avg = %d", sum.AverageDurationSeconds)
	}
	if sum.RecordedCalls != 1 {
		t.Fatalf("recorded = %d", sum.RecordedCalls)
	}
}

func TestCallsSummaryWindowFilters(t *testing.T) {
	store := accounts.NewMemoryRecordStore()
	seedCalls(t, store)
	svc := NewService(store)

	sum, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		TenantID: "t1",
		Range: TimeRange{
			From: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalCalls != 1 {
		t.Fatalf("total = %d, want 1", sum.TotalCalls)
	}
}

func TestCallsSummaryRejectsBadRequests(t *testing.T) {
	svc := NewService(accounts.NewMemoryRecordStore())
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	cases := []CallsSummaryRequest{
		{TenantID: "", Range: TimeRange{From: from, To: to}},
		{TenantID: "t1"},
		{TenantID: "t1", Range: TimeRange{From: to, To: from}},
		{TenantID: "t1", Range: TimeRange{From: from, To: from}},
	}
	for i, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: got %v, want ErrInvalidRequest", i, err)
		}
	}
}

func TestMessagesSummary(t *testing.T) {
	store := accounts.NewMemoryRecordStore()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	msgs := []normalize.MessageRecord{
		{VendorID: "m-1", TenantID: "t1", Direction: normalize.DirectionInbound, Status: normalize.MessageStatusReceived, CreatedAt: base},
		{VendorID: "m-2", TenantID: "t1", Direction: normalize.DirectionOutbound, Status: normalize.MessageStatusFailed, CreatedAt: base.Add(time.Minute)},
	}
	for _, m := range msgs {
		m.From = normalize.UnknownValue
		m.To = normalize.UnknownValue
		m.CustomerName = normalize.UnknownValue
		if err := store.AppendMessage(context.Background(), m); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := NewService(store)
	sum, err := svc.MessagesSummary(context.Background(), MessagesSummaryRequest{
		TenantID: "t1",
		Range:    TimeRange{From: base.Add(-time.Hour), To: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalMessages != 2 || sum.InboundMessages != 1 || sum.OutboundMessages != 1 || sum.FailedMessages != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}
