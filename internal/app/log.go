package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// stashHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t<key=value ...>
type stashHandler struct {
	w         io.Writer
	sessionID string
	attrs     []slog.Attr
}

func (h *stashHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *stashHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.sessionID, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *stashHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stashHandler{
		w:         h.w,
		sessionID: h.sessionID,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *stashHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/fstash.log
// and stderr. It returns the slog.Logger, the open log file (for cleanup),
// and any error.
func newLogger(logDir string, sessionID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "fstash.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	handler := &stashHandler{w: w, sessionID: sessionID}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the stash.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
