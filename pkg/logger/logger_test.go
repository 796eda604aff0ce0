package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "DEBUG", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "user-7")
	WithRequestID(ctx, log).Debug("hello")
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-7" {
		t.Fatalf("context fields missing: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("timestamp key missing: %v", entry)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Level: "verbose", Encoding: "console", Output: &buf})

	log.Debug("hidden")
	log.Info("shown")
	_ = log.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestWithRequestIDWithoutValues(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Config{Output: &buf})
	if got := WithRequestID(context.Background(), log); got != log {
		t.Fatal("expected base logger back when ctx carries nothing")
	}
	if RequestID(nil) != "" {
		t.Fatal("RequestID(nil) should be empty")
	}
}
