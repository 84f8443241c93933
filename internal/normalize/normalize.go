// Package normalize maps vendor call/message payloads into the stable
// internal schema.
//
// Rules:
//   - Normalization is a pure function of the vendor payload: same input,
//     same output. Dedup by VendorID depends on this.
//   - Missing optional fields become explicit sentinels, never empty
//     propagated nils.
//   - Unmapped vendor statuses degrade to failed with a Warning; a bad
//     record must not drop the rest of a page.
package normalize

import (
	"strings"
	"time"
)

// callStatusByVendor is the closed translation table from vendor call
// states to the internal enum. Lookups are case-insensitive.
var callStatusByVendor = map[string]CallStatus{
	"queued":      CallStatusQueued,
	"setup":       CallStatusQueued,
	"ringing":     CallStatusRinging,
	"inprogress":  CallStatusInProgress,
	"in-progress": CallStatusInProgress,
	"connected":   CallStatusInProgress,
	"completed":   CallStatusCompleted,
	"answered":    CallStatusCompleted,
	"accepted":    CallStatusCompleted,
	"missed":      CallStatusNoAnswer,
	"noanswer":    CallStatusNoAnswer,
	"no-answer":   CallStatusNoAnswer,
	"busy":        CallStatusBusy,
	"voicemail":   CallStatusVoicemail,
	"rejected":    CallStatusCanceled,
	"canceled":    CallStatusCanceled,
	"cancelled":   CallStatusCanceled,
	"failed":      CallStatusFailed,
	"error":       CallStatusFailed,
}

var messageStatusByVendor = map[string]MessageStatus{
	"queued":          MessageStatusQueued,
	"sending":         MessageStatusQueued,
	"sent":            MessageStatusSent,
	"delivered":       MessageStatusDelivered,
	"received":        MessageStatusReceived,
	"read":            MessageStatusReceived,
	"deliveryfailed":  MessageStatusFailed,
	"sendingfailed":   MessageStatusFailed,
	"failed":          MessageStatusFailed,
}

// NormalizeCall converts one vendor call payload. The returned warnings are
// data-quality findings; the record is always usable.
func NormalizeCall(v VendorCall) (CallRecord, []Warning) {
	var warnings []Warning

	rec := CallRecord{
		VendorID:        v.ID,
		From:            partyNumber(v.From),
		To:              partyNumber(v.To),
		DurationSeconds: v.Duration,
		CustomerName:    customerName(v.Direction, v.From, v.To),
	}

	rec.Direction, warnings = parseDirection(v.ID, v.Direction, warnings)

	status, ok := callStatusByVendor[strings.ToLower(strings.TrimSpace(v.State))]
	if !ok {
		status = CallStatusFailed
		warnings = append(warnings, Warning{
			VendorID: v.ID,
			Field:    "state",
			Reason:   "unmapped vendor call state " + strings.TrimSpace(v.State),
		})
	}
	rec.Status = status

	if v.Recording != nil {
		rec.RecordingURL = v.Recording.ContentURI
	}
	if v.Voicemail != nil {
		rec.VoicemailURL = v.Voicemail.ContentURI
	}

	rec.StartedAt, warnings = parseTime(v.ID, "startTime", v.StartTime, warnings)
	return rec, warnings
}

// NormalizeMessage converts one vendor message payload.
func NormalizeMessage(v VendorMessage) (MessageRecord, []Warning) {
	var warnings []Warning

	rec := MessageRecord{
		VendorID:     v.ID,
		From:         partyNumber(v.From),
		To:           partyNumber(v.To),
		CustomerName: customerName(v.Direction, v.From, v.To),
	}

	rec.Direction, warnings = parseDirection(v.ID, v.Direction, warnings)

	status, ok := messageStatusByVendor[strings.ToLower(strings.TrimSpace(v.MessageStatus))]
	if !ok {
		status = MessageStatusFailed
		warnings = append(warnings, Warning{
			VendorID: v.ID,
			Field:    "messageStatus",
			Reason:   "unmapped vendor message status " + strings.TrimSpace(v.MessageStatus),
		})
	}
	rec.Status = status

	rec.Body = extractBody(v)
	rec.CreatedAt, warnings = parseTime(v.ID, "creationTime", v.CreationTime, warnings)
	return rec, warnings
}

// extractBody picks message content by a fixed preference order:
// HTML part, then plain-text part, then any part, then the subject line.
// The order is a contract; tests pin it.
func extractBody(v VendorMessage) string {
	var plain, other string
	for _, p := range v.Parts {
		ct := strings.ToLower(strings.TrimSpace(p.ContentType))
		switch {
		case strings.HasPrefix(ct, "text/html"):
			if p.Content != "" {
				return p.Content
			}
		case strings.HasPrefix(ct, "text/plain"):
			if plain == "" {
				plain = p.Content
			}
		default:
			if other == "" {
				other = p.Content
			}
		}
	}
	if plain != "" {
		return plain
	}
	if other != "" {
		return other
	}
	return v.Subject
}

func parseDirection(vendorID, raw string, warnings []Warning) (Direction, []Warning) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inbound":
		return DirectionInbound, warnings
	case "outbound":
		return DirectionOutbound, warnings
	default:
		warnings = append(warnings, Warning{
			VendorID: vendorID,
			Field:    "direction",
			Reason:   "unmapped direction " + strings.TrimSpace(raw),
		})
		return DirectionUnknown, warnings
	}
}

func parseTime(vendorID, field, raw string, warnings []Warning) (time.Time, []Warning) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, warnings
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		warnings = append(warnings, Warning{
			VendorID: vendorID,
			Field:    field,
			Reason:   "unparseable timestamp " + raw,
		})
		return time.Time{}, warnings
	}
	return t.UTC(), warnings
}

func partyNumber(p VendorParty) string {
	if s := strings.TrimSpace(p.PhoneNumber); s != "" {
		return s
	}
	return UnknownValue
}

// customerName picks the counterparty's display name: the caller for
// inbound traffic, the callee for outbound.
func customerName(direction string, from, to VendorParty) string {
	var name string
	if strings.EqualFold(strings.TrimSpace(direction), "outbound") {
		name = to.Name
	} else {
		name = from.Name
	}
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return UnknownValue
}
