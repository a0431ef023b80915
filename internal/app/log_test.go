package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestHandler(file, console *bytes.Buffer, level slog.Level, opID string) *sdrHandler {
	h := &sdrHandler{mu: &sync.Mutex{}, consoleLevel: level, opID: opID}
	if file != nil {
		h.file = file
	}
	if console != nil {
		h.console = console
	}
	return h
}

func TestSdrHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "file uploaded",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tfile uploaded\n",
		},
		{
			name:    "debug level",
			opID:    "op-456",
			level:   slog.LevelDebug,
			message: "job not complete",
			want:    "2024-06-15T14:30:45Z\tDEBUG\top-456\tjob not complete\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "resource submitted",
			attrs:   []slog.Attr{slog.String("job_id", "12"), slog.Int("files", 2)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\tresource submitted\tjob_id=12\tfiles=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTestHandler(&buf, nil, slog.LevelInfo, tt.opID)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestSdrHandler_ConsoleLevel(t *testing.T) {
	var file, console bytes.Buffer
	logger := slog.New(newTestHandler(&file, &console, slog.LevelInfo, "op-1"))

	logger.Debug("polling")
	logger.Info("uploaded")
	logger.Warn("receipt failed")

	if got := strings.Count(file.String(), "\n"); got != 3 {
		t.Errorf("file got %d lines, want 3: %q", got, file.String())
	}
	if strings.Contains(console.String(), "polling") {
		t.Errorf("console should not receive debug records: %q", console.String())
	}
	if !strings.Contains(console.String(), "uploaded") || !strings.Contains(console.String(), "receipt failed") {
		t.Errorf("console missing records: %q", console.String())
	}
}

func TestSdrHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf, nil, slog.LevelInfo, "op-1")

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "api")}).(*sdrHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=api") {
		t.Errorf("expected pre-set attr component=api, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
	if len(h.attrs) != 0 {
		t.Errorf("original handler mutated: %v", h.attrs)
	}
}

func TestSdrHandler_Enabled(t *testing.T) {
	consoleOnly := &sdrHandler{mu: &sync.Mutex{}, console: &bytes.Buffer{}, consoleLevel: slog.LevelInfo}
	if consoleOnly.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true for console-only info handler")
	}
	if !consoleOnly.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Enabled(warn) = false")
	}

	withFile := &sdrHandler{mu: &sync.Mutex{}, file: &bytes.Buffer{}, consoleLevel: slog.LevelInfo}
	if !withFile.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = false with a log file")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	var console bytes.Buffer
	logger, f, err := newLogger(dir, "test-op", &console, slog.LevelWarn)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("written to file only")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test-op\twritten to file only") {
		t.Errorf("log file = %q", data)
	}
	if console.Len() != 0 {
		t.Errorf("console = %q, want empty", console.String())
	}
}
