package integration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"fieldlink/internal/normalize"
)

// SignatureHeader carries the vendor's hex HMAC-SHA256 of the raw request
// body, keyed with the shared webhook secret.
const SignatureHeader = "X-Vendor-Signature"

// VerifySignature checks a webhook delivery against the shared secret. The
// comparison is constant-time; an unverified payload must never be parsed.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// webhookEvent is the vendor's push envelope. Exactly one of Call or Message
// is set depending on Type.
type webhookEvent struct {
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`

	Call    *normalize.VendorCall    `json:"call,omitempty"`
	Message *normalize.VendorMessage `json:"message,omitempty"`
}

// IngestEvent routes a verified webhook payload through the same
// normalize-dedup-persist pipeline pull sync uses. A redelivered event is a
// no-op, not an error.
func (f *Facade) IngestEvent(ctx context.Context, body []byte) (SyncResult, error) {
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return SyncResult{}, fmt.Errorf("integration: decode webhook event: %w", err)
	}
	if ev.TenantID == "" {
		return SyncResult{}, fmt.Errorf("integration: webhook event missing tenant_id")
	}

	var result SyncResult
	switch ev.Type {
	case "call":
		if ev.Call == nil {
			return SyncResult{}, fmt.Errorf("integration: call event missing call payload")
		}
		recs, err := f.ingestCalls(ctx, ev.TenantID, []normalize.VendorCall{*ev.Call})
		if err != nil {
			return SyncResult{}, err
		}
		result.NewCalls = len(recs)
	case "message":
		if ev.Message == nil {
			return SyncResult{}, fmt.Errorf("integration: message event missing message payload")
		}
		recs, err := f.ingestMessages(ctx, ev.TenantID, []normalize.VendorMessage{*ev.Message})
		if err != nil {
			return SyncResult{}, err
		}
		result.NewMessages = len(recs)
	default:
		return SyncResult{}, fmt.Errorf("integration: unsupported event type %q", ev.Type)
	}
	return result, nil
}
