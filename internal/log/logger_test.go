package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := Setup(&buf, "warn", "json", ComponentWorker)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("dropped")
	logger.Warn("Rollover failed", NewFields().WithOperation(OpRollover).ToSlice()...)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record above warn level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec[FieldComponent] != ComponentWorker || rec[FieldOperation] != OpRollover {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestSetup_RejectsUnknownFormat(t *testing.T) {
	if _, err := Setup(&bytes.Buffer{}, "info", "xml", ComponentApp); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentCLI, Handler: slog.NewTextHandler(&buf, nil)})
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatal("FromContext did not return the stored logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("fallback component = %q, want unknown", got)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithRollover(TriggerTicker, "completed", 2, 15).WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
	if f[FieldCreated] != 2 || f[FieldTrigger] != TriggerTicker {
		t.Errorf("unexpected fields %v", f)
	}
	if got := len(f.ToSlice()); got != 8 {
		t.Errorf("ToSlice() len = %d, want 8", got)
	}
}
