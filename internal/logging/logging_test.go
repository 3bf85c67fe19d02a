package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("target", "sun")).Info(context.Background(), "cycle complete",
		Float("altitude", 42.5),
		Err(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "cycle complete" {
		t.Fatalf("msg = %v, want cycle complete", entry["msg"])
	}
	if entry["target"] != "sun" || entry["altitude"] != 42.5 || entry["error"] != "boom" {
		t.Fatalf("unexpected fields: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn line not written")
	}
}

func TestEnsureSessionIDStable(t *testing.T) {
	ctx, id := EnsureSessionID(context.Background())
	if id == "" {
		t.Fatalf("expected generated session id")
	}
	ctx2, id2 := EnsureSessionID(ctx)
	if id2 != id || SessionIDFromContext(ctx2) != id {
		t.Fatalf("session id changed: %q -> %q", id, id2)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on empty context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("expected noop logger when storing nil")
	}
}
