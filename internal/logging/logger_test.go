package logging

import (
	"bytes"
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
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("kernel_started", "port", 8813)

	out := buf.String()
	if !strings.Contains(out, `"msg":"kernel_started"`) {
		t.Errorf("expected JSON output, got: %s", out)
	}
	if !strings.Contains(out, `"port":8813`) {
		t.Errorf("expected port attribute, got: %s", out)
	}
}

func TestNewLoggerWithWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "json", "warn")
	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn should pass at warn level")
	}
}
