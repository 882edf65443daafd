package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitTextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	New("cache").Info("entry evicted", "key", "abc123")

	out := buf.String()
	if !strings.Contains(out, "component=cache") || !strings.Contains(out, "entry evicted") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "json", &buf)

	New("store").Warn("append failed", "error", "disk full")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "store" || rec["msg"] != "append failed" {
		t.Fatalf("record: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	New("test").Info("should not appear")
	New("test").Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("info leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn suppressed: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}
