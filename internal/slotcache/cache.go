// Package slotcache holds the most recently fetched scheduling slots per
// session, between the fetch that presents them and the booking that
// consumes them.
package slotcache

import (
	"log/slog"
	"sync"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Cache is a process-local map from session id to its latest slot list.
// Entries have no individual TTL: Sweep clears the whole cache once it
// grows past maxSessions, as a coarse bound on growth. A booking that
// loses its entry to a sweep fails with a recoverable "search again"
// error at the dispatcher.
type Cache struct {
	mu          sync.Mutex
	entries     map[string][]protocol.TimeSlot
	maxSessions int
	logger      *slog.Logger
}

// New creates a slot cache that Sweep clears once it holds more than
// maxSessions entries.
func New(maxSessions int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:     make(map[string][]protocol.TimeSlot),
		maxSessions: maxSessions,
		logger:      logger,
	}
}

// Put replaces the cached slot list for a session.
func (c *Cache) Put(sessionID string, slots []protocol.TimeSlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = slots
}

// Get returns the cached slot list for a session, or nil if absent.
func (c *Cache) Get(sessionID string) []protocol.TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[sessionID]
}

// Delete removes a session's entry (slot consumption on booking).
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep clears the entire cache when it exceeds the size threshold.
// Called on a fixed interval by a timer owned by the composition root.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) <= c.maxSessions {
		return
	}
	n := len(c.entries)
	c.entries = make(map[string][]protocol.TimeSlot)
	c.logger.Info("slot cache cleared", "evicted_sessions", n, "max_sessions", c.maxSessions)
}
