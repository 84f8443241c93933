package utils

import (
	"context"
	"testing"
	"time"
)

func TestMarkSeenScriptCompiles(t *testing.T) {
	// Compile-time smoke test: script should be initialized.
	if markSeenScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestMarkSeenValidatesInput(t *testing.T) {
	if _, err := MarkSeen(context.Background(), nil, []string{"k"}, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
	out, err := MarkSeen(context.Background(), nil, nil, time.Minute)
	if err != nil || out != nil {
		t.Fatalf("empty batch should be a no-op, got %v %v", out, err)
	}
}

func TestConsumeOnceValidatesInput(t *testing.T) {
	if _, err := ConsumeOnce(context.Background(), nil, "k", time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
