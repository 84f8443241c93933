package normalize

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func sampleCall() VendorCall {
	return VendorCall{
		ID:        "call-100",
		Direction: "Inbound",
		From:      VendorParty{PhoneNumber: "+15551234567", Name: "Dana Fixit"},
		To:        VendorParty{PhoneNumber: "+15557654321"},
		State:     "Completed",
		StartTime: "2024-03-01T10:00:00Z",
		Duration:  125,
		Recording: &VendorRecording{ContentURI: "https://media.vendor.example.com/rec/100"},
	}
}

func TestNormalizeCall(t *testing.T) {
	rec, warnings := NormalizeCall(sampleCall())
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if rec.VendorID != "call-100" {
		t.Fatalf("vendor id: %q", rec.VendorID)
	}
	if rec.Direction != DirectionInbound || rec.Status != CallStatusCompleted {
		t.Fatalf("unexpected direction/status: %+v", rec)
	}
	if rec.From != "+15551234567" || rec.To != "+15557654321" {
		t.Fatalf("unexpected endpoints: %+v", rec)
	}
	if rec.CustomerName != "Dana Fixit" {
		t.Fatalf("expected caller name for inbound, got %q", rec.CustomerName)
	}
	if rec.DurationSeconds != 125 || rec.RecordingURL == "" {
		t.Fatalf("unexpected duration/recording: %+v", rec)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !rec.StartedAt.Equal(want) {
		t.Fatalf("unexpected start time: %v", rec.StartedAt)
	}
}

func TestNormalizeCallIsIdempotent(t *testing.T) {
	a, _ := NormalizeCall(sampleCall())
	b, _ := NormalizeCall(sampleCall())

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("normalization must be deterministic:\n%s\n%s", ja, jb)
	}
}

func TestNormalizeCallUnmappedStatus(t *testing.T) {
	v := sampleCall()
	v.State = "unknown_vendor_status"

	rec, warnings := NormalizeCall(v)
	if rec.Status != CallStatusFailed {
		t.Fatalf("unmapped status must fall back to failed, got %q", rec.Status)
	}
	if len(warnings) != 1 || warnings[0].Field != "state" {
		t.Fatalf("expected one state warning, got %v", warnings)
	}
}

func TestNormalizeCallMissingOptionalFields(t *testing.T) {
	v := VendorCall{ID: "call-101", Direction: "outbound", State: "busy"}

	rec, _ := NormalizeCall(v)
	if rec.From != UnknownValue || rec.To != UnknownValue {
		t.Fatalf("missing numbers must become sentinels, got %+v", rec)
	}
	if rec.CustomerName != UnknownValue {
		t.Fatalf("missing name must become sentinel, got %q", rec.CustomerName)
	}
	if rec.RecordingURL != "" || rec.VoicemailURL != "" {
		t.Fatalf("absent media should stay empty: %+v", rec)
	}
	if rec.Status != CallStatusBusy {
		t.Fatalf("status: %q", rec.Status)
	}
}

func TestNormalizeCallBadTimestampWarnsButKeepsRecord(t *testing.T) {
	v := sampleCall()
	v.StartTime = "yesterday-ish"

	rec, warnings := NormalizeCall(v)
	if !rec.StartedAt.IsZero() {
		t.Fatalf("unparseable time must yield zero time, got %v", rec.StartedAt)
	}
	if len(warnings) != 1 || warnings[0].Field != "startTime" {
		t.Fatalf("expected timestamp warning, got %v", warnings)
	}
	if rec.VendorID != "call-100" {
		t.Fatalf("record must still be emitted")
	}
}

func TestNormalizeMessagePrefersHTMLOverPlainText(t *testing.T) {
	v := VendorMessage{
		ID:            "msg-1",
		Direction:     "Inbound",
		MessageStatus: "Received",
		Subject:       "fallback subject",
		Parts: []VendorPart{
			{ContentType: "text/plain", Content: "plain body"},
			{ContentType: "text/html; charset=utf-8", Content: "<p>html body</p>"},
		},
	}

	rec, _ := NormalizeMessage(v)
	if rec.Body != "<p>html body</p>" {
		t.Fatalf("HTML part must win, got %q", rec.Body)
	}
}

func TestNormalizeMessageFallsBackToPlainThenSubject(t *testing.T) {
	v := VendorMessage{
		ID:            "msg-2",
		Direction:     "Outbound",
		MessageStatus: "Sent",
		Subject:       "subject body",
		Parts:         []VendorPart{{ContentType: "text/plain", Content: "plain body"}},
	}
	rec, _ := NormalizeMessage(v)
	if rec.Body != "plain body" {
		t.Fatalf("plain part must win without HTML, got %q", rec.Body)
	}

	v.Parts = nil
	rec, _ = NormalizeMessage(v)
	if rec.Body != "subject body" {
		t.Fatalf("subject must be the last resort, got %q", rec.Body)
	}
}

func TestNormalizeMessageStatusTable(t *testing.T) {
	cases := map[string]MessageStatus{
		"Queued":         MessageStatusQueued,
		"Sent":           MessageStatusSent,
		"Delivered":      MessageStatusDelivered,
		"Received":       MessageStatusReceived,
		"DeliveryFailed": MessageStatusFailed,
		"whatever-else":  MessageStatusFailed,
	}
	for vendorStatus, want := range cases {
		rec, _ := NormalizeMessage(VendorMessage{ID: "m", Direction: "inbound", MessageStatus: vendorStatus})
		if rec.Status != want {
			t.Fatalf("status %q: expected %q, got %q", vendorStatus, want, rec.Status)
		}
	}
}

func TestNormalizeMessageUnknownDirectionWarns(t *testing.T) {
	rec, warnings := NormalizeMessage(VendorMessage{ID: "m", Direction: "sideways", MessageStatus: "sent"})
	if rec.Direction != DirectionUnknown {
		t.Fatalf("expected unknown direction, got %q", rec.Direction)
	}
	found := false
	for _, w := range warnings {
		if w.Field == "direction" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected direction warning, got %v", warnings)
	}
}

func TestCustomerNamePicksCounterparty(t *testing.T) {
	out := VendorCall{
		ID:        "c",
		Direction: "Outbound",
		From:      VendorParty{PhoneNumber: "+1555", Name: "Our Office"},
		To:        VendorParty{PhoneNumber: "+1666", Name: "Pat Customer"},
		State:     "completed",
	}
	rec, _ := NormalizeCall(out)
	if rec.CustomerName != "Pat Customer" {
		t.Fatalf("outbound must take callee name, got %q", rec.CustomerName)
	}
}

func TestWarningsDoNotAliasRecords(t *testing.T) {
	// Two records normalized independently must not share warning state.
	a, wa := NormalizeCall(VendorCall{ID: "a", Direction: "inbound", State: "nope"})
	b, wb := NormalizeCall(VendorCall{ID: "b", Direction: "inbound", State: "completed"})
	if len(wa) != 1 || len(wb) != 0 {
		t.Fatalf("unexpected warnings: %v %v", wa, wb)
	}
	if reflect.DeepEqual(a, b) {
		t.Fatalf("distinct payloads must normalize distinctly")
	}
}
