package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"scholarportal.org/internal/auth"
	"scholarportal.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, "user-42", auth.RoleCustomer)

	if err := LogEvent(ctx, EventLogin, map[string]any{"email": "a@b.co", "error": errors.New("boom")}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != EventLogin {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" || entry["role"] != "customer" {
		t.Fatalf("unexpected user: %v %v", entry["user_id"], entry["role"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email"] != "a@b.co" || fields["error"] != "boom" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	captureLog(t)
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event")
	}
}
