package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(level slog.Level, component string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
	return New(Config{Level: level, Component: component, Handler: handler}), buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo, ComponentLedger)

	logger.Info("Entry added", FieldLicense, "TAXI123")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "license=TAXI123") {
		t.Errorf("unexpected log output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %s", out)
	}
	if logger.Component() != ComponentLedger {
		t.Errorf("Component() = %q", logger.Component())
	}
}

func TestFromContext(t *testing.T) {
	logger, _ := newBufferLogger(slog.LevelInfo, ComponentHTTP)

	if got := FromContext(WithLogger(context.Background(), logger)); got != logger {
		t.Error("FromContext should return the stored logger")
	}
	if got := FromContext(context.Background()); got == nil || got.Component() != "unknown" {
		t.Errorf("FromContext fallback = %+v", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo, ComponentHTTP)
	sl := NewStructuredLogger(logger)
	r := httptest.NewRequest(http.MethodPost, "/api/entries", nil)
	ctx := context.Background()

	sl.LogHTTPEnd(ctx, r, "req-9", http.StatusBadRequest, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "status_code=400") {
		t.Errorf("unexpected HTTP end log: %s", buf.String())
	}

	buf.Reset()
	sl.LogEntryChange(ctx, OpDelete, "CAB", 42, "2024-03-01")
	if !strings.Contains(buf.String(), "entry_id=42") || !strings.Contains(buf.String(), "operation=delete") {
		t.Errorf("unexpected entry log: %s", buf.String())
	}

	buf.Reset()
	sl.LogError(ctx, "Save failed", errors.New("disk full"), OpCreate, NewFields().WithLicense("CAB"))
	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("unexpected error log: %s", buf.String())
	}
}
