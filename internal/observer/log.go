package observer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/userwatch/internal/event"
)

// LogSink appends one timestamped line per event to a writer, normally an
// append-only log file:
//
//	time=2026-01-02T15:04:05.000Z level=INFO msg=event event=entity:created payload="{...}"
//
// A failed write is retried once before Update reports it.
type LogSink struct {
	mu      sync.Mutex
	handler slog.Handler
	now     func() time.Time
	closer  io.Closer
}

// LogOption configures a LogSink.
type LogOption func(*LogSink)

// WithClock overrides the timestamp source. Tests use it for stable output.
func WithClock(now func() time.Time) LogOption {
	return func(l *LogSink) {
		l.now = now
	}
}

// NewLogSink writes lines to w.
func NewLogSink(w io.Writer, opts ...LogOption) *LogSink {
	l := &LogSink{
		handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenLogSink appends lines to the file at path, creating it and its parent
// directories if needed. Close releases the file.
func OpenLogSink(path string, opts ...LogOption) (*LogSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := NewLogSink(f, opts...)
	l.closer = f
	return l, nil
}

// Update implements event.Observer.
func (l *LogSink) Update(_ event.Subject, name string, data any) error {
	payload := renderPayload(data)

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := slog.NewRecord(l.now(), slog.LevelInfo, "event", 0)
	rec.AddAttrs(slog.String("event", name), slog.String("payload", payload))

	ctx := context.Background()
	if err := l.handler.Handle(ctx, rec); err != nil {
		slog.Warn("log sink write failed, retrying", "event", name, "error", err)
		if err := l.handler.Handle(ctx, rec); err != nil {
			return fmt.Errorf("log sink: %w", err)
		}
	}
	return nil
}

// Close closes the underlying file when the sink owns one.
func (l *LogSink) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
