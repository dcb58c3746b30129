package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStashHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name      string
		sessionID string
		level     slog.Level
		message   string
		attrs     []slog.Attr
		want      string
	}{
		{
			name:      "basic info message",
			sessionID: "20240615T143045Z storage put",
			level:     slog.LevelInfo,
			message:   "file uploaded",
			want:      "2024-06-15T14:30:45Z\tINFO\t20240615T143045Z storage put\tfile uploaded\n",
		},
		{
			name:      "warn level",
			sessionID: "s1",
			level:     slog.LevelWarn,
			message:   "slow vault",
			want:      "2024-06-15T14:30:45Z\tWARN\ts1\tslow vault\n",
		},
		{
			name:      "with record attrs",
			sessionID: "s2",
			level:     slog.LevelInfo,
			message:   "entry moved",
			attrs:     []slog.Attr{slog.String("path", "docs/a.txt"), slog.Int("bytes", 42)},
			want:      "2024-06-15T14:30:45Z\tINFO\ts2\tentry moved\tpath=docs/a.txt\tbytes=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &stashHandler{w: &buf, sessionID: tt.sessionID}

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

func TestStashHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &stashHandler{w: &buf, sessionID: "s1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*stashHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "snapshot exported", 0)
	r.AddAttrs(slog.String("key", "3/abc.tar.gz"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=vault") {
		t.Errorf("expected pre-set attr component=vault, got: %q", got)
	}
	if !strings.Contains(got, "key=3/abc.tar.gz") {
		t.Errorf("expected record attr key=..., got: %q", got)
	}
}

func TestStashHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &stashHandler{w: &buf, sessionID: "s1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*stashHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-session")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
