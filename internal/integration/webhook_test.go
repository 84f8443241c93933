package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"tenant_id":"t1"}`)
	sig := sign("hook-secret", body)

	if !VerifySignature("hook-secret", body, sig) {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature("hook-secret", body, sign("wrong-secret", body)) {
		t.Fatalf("signature under wrong secret accepted")
	}
	if VerifySignature("hook-secret", []byte(`{"tenant_id":"t2"}`), sig) {
		t.Fatalf("signature over different body accepted")
	}
	if VerifySignature("hook-secret", body, "") {
		t.Fatalf("empty signature accepted")
	}
	if VerifySignature("", body, sig) {
		t.Fatalf("empty secret accepted")
	}
}

func TestIngestEventCallThroughPipeline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	body := []byte(`{"tenant_id":"t1","type":"call","call":
		{"id":"wh-1","direction":"Inbound","from":{"phoneNumber":"+15550001111","name":"Dana"},"to":{"phoneNumber":"+15550002222"},"state":"Completed","startTime":"2025-06-01T09:00:00Z","duration":45}}`)

	result, err := env.facade.IngestEvent(ctx, body)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.NewCalls != 1 {
		t.Fatalf("result = %+v", result)
	}

	// Redelivery of the same event is deduplicated, not an error.
	result, err = env.facade.IngestEvent(ctx, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.NewCalls != 0 {
		t.Fatalf("redelivery ingested again: %+v", result)
	}

	stored, _ := env.records.ListCalls(ctx, "t1", time.Time{}, time.Time{})
	if len(stored) != 1 || stored[0].VendorID != "wh-1" {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestIngestEventRejectsBadEnvelope(t *testing.T) {
	env := newTestEnv(t)
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"type":"call"}`),
		[]byte(`{"tenant_id":"t1","type":"call"}`),
		[]byte(`{"tenant_id":"t1","type":"fax"}`),
	}
	for _, body := range cases {
		if _, err := env.facade.IngestEvent(context.Background(), body); err == nil {
			t.Fatalf("envelope %s accepted", body)
		}
	}
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	h := Handlers{Facade: env.facade, WebhookSecret: "hook-secret"}

	r := gin.New()
	r.POST("/webhooks/vendor/events", h.HandleInboundEvent)

	body := []byte(`{"tenant_id":"t1","type":"call","call":{"id":"wh-1","direction":"Inbound","state":"Completed"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/vendor/events", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("wrong-secret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(env.auditLog.Events()) == 0 {
		t.Fatalf("rejection not audited")
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/vendor/events", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("hook-secret", body))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
}
