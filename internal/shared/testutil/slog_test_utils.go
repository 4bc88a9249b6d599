package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log line.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// BufferedSlogHandler is an slog.Handler that keeps every record in
// memory so tests can assert on what was logged.
type BufferedSlogHandler struct {
	mu      sync.Mutex
	entries []LogRecord
	t       testing.TB
}

// NewBufferedSlogHandler builds an empty handler. Records are echoed
// to t's log when t is non-nil.
func NewBufferedSlogHandler(t testing.TB) *BufferedSlogHandler {
	return &BufferedSlogHandler{t: t}
}

// Handle implements slog.Handler.
func (b *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()
		return true
	})

	b.mu.Lock()
	b.entries = append(b.entries, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	b.mu.Unlock()

	if b.t != nil {
		b.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}

	return nil
}

// Enabled implements slog.Handler; tests capture every level.
func (b *BufferedSlogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler. Attrs added through With are not
// tracked separately.
func (b *BufferedSlogHandler) WithAttrs([]slog.Attr) slog.Handler {
	return b
}

// WithGroup implements slog.Handler.
func (b *BufferedSlogHandler) WithGroup(string) slog.Handler {
	return b
}

// snapshot copies the buffer under the lock so callers can iterate
// without racing concurrent logging.
func (b *BufferedSlogHandler) snapshot() []LogRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]LogRecord, len(b.entries))
	copy(out, b.entries)
	return out
}

// GetRecords returns a copy of every captured record.
func (b *BufferedSlogHandler) GetRecords() []LogRecord {
	return b.snapshot()
}

// GetRecordsByLevel returns the captured records at exactly level.
func (b *BufferedSlogHandler) GetRecordsByLevel(level slog.Level) []LogRecord {
	var matched []LogRecord
	for _, rec := range b.snapshot() {
		if rec.Level == level {
			matched = append(matched, rec)
		}
	}
	return matched
}

// ContainsMessage reports whether any record's message contains the
// given substring.
func (b *BufferedSlogHandler) ContainsMessage(message string) bool {
	for _, rec := range b.snapshot() {
		if strings.Contains(rec.Message, message) {
			return true
		}
	}
	return false
}

// ContainsAttr reports whether any record carries key with exactly
// value.
func (b *BufferedSlogHandler) ContainsAttr(key string, value any) bool {
	for _, rec := range b.snapshot() {
		if got, ok := rec.Attrs[key]; ok && got == value {
			return true
		}
	}
	return false
}

// Count returns how many records were captured.
func (b *BufferedSlogHandler) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// NewTestLogger returns a logger writing into a fresh buffered handler,
// plus the handler for assertions.
func NewTestLogger(t testing.TB) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

// AssertLogContains fails t unless a record at level contains message.
func AssertLogContains(t testing.TB, h *BufferedSlogHandler, level slog.Level, message string) {
	t.Helper()

	records := h.GetRecordsByLevel(level)
	for _, rec := range records {
		if strings.Contains(rec.Message, message) {
			return
		}
	}

	t.Errorf("no log at %s contains %q", level, message)
	t.Logf("records at %s:", level)
	for _, rec := range records {
		t.Logf("  - %s", rec.Message)
	}
}

// AssertNoErrors fails t when any error-level record was captured.
func AssertNoErrors(t testing.TB, h *BufferedSlogHandler) {
	t.Helper()

	for _, rec := range h.GetRecordsByLevel(slog.LevelError) {
		t.Errorf("unexpected error log %q with attrs %v", rec.Message, rec.Attrs)
	}
}
