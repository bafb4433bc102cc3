package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogMergesFields(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	Warn("logout cleanup failed", map[string]any{
		"err":   errors.New("connection refused"),
		"level": "ignored",
		"op":    "logout",
	})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["level"] != LevelWarn {
		t.Fatalf("reserved level overwritten: %v", entry["level"])
	}
	if entry["msg"] != "logout cleanup failed" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["err"] != "connection refused" {
		t.Fatalf("error field not stringified: %v", entry["err"])
	}
	if entry["ts"] == nil {
		t.Fatal("missing ts")
	}
}
