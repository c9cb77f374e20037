package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWithConfig_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev); globalLogger = nil })

	var buf bytes.Buffer
	if err := InitWithConfig(LogConfig{Level: "INFO", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("init: %v", err)
	}

	Debug(context.Background(), "hidden")
	ErrorWithErr(context.Background(), "resolve failed", errors.New("boom"), "trade", "AAPL:2024-01-19")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["msg"] != "resolve failed" || entry["error"] != "boom" || entry["trade"] != "AAPL:2024-01-19" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestStartSpan_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	got, span := StartSpan(ctx, "noop")
	if got != ctx {
		t.Error("expected the same context when tracing is off")
	}
	if span.SpanContext().IsValid() {
		t.Error("expected an invalid span when tracing is off")
	}
}

func TestToAttributes(t *testing.T) {
	attrs := toAttributes([]any{"ticker", "AAPL", "legs", 2, "ok", true, 42, "skipped", "dangling"})
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if string(attrs[0].Key) != "ticker" || attrs[1].Value.AsInt64() != 2 || !attrs[2].Value.AsBool() {
		t.Errorf("unexpected attributes %v", attrs)
	}
}
