package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"  WARN ": slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewJSONLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "api", "info")
	logger.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["service"] != "api" || entry["msg"] != "hello" || entry["key"] != "value" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewJSONLoggerSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "api", "warn")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
}
