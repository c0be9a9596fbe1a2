// Package logbuf keeps the most recent log entries in memory so the
// operator endpoint can serve them without touching disk.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is a single captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer retains the newest entries up to a fixed capacity. Safe for
// concurrent use.
type Buffer struct {
	mu  sync.Mutex
	buf []Entry
	cap int
}

// New creates a buffer holding up to size entries.
func New(size int) *Buffer {
	return &Buffer{buf: make([]Entry, 0, size), cap: size}
}

// Write appends an entry, evicting the oldest when full.
func (b *Buffer) Write(e Entry) {
	b.mu.Lock()
	if len(b.buf) == b.cap {
		copy(b.buf, b.buf[1:])
		b.buf[len(b.buf)-1] = e
	} else {
		b.buf = append(b.buf, e)
	}
	b.mu.Unlock()
}

// Query returns entries at or above minLevel recorded at or after since,
// oldest first. A zero since matches everything; limit <= 0 means no
// limit, otherwise the newest matching entries win.
func (b *Buffer) Query(since time.Time, minLevel slog.Level, limit int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	for _, e := range b.buf {
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		if levelValue(e.Level) < minLevel {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelValue(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
