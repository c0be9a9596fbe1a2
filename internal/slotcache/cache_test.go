package slotcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

func slots(n int) []protocol.TimeSlot {
	out := make([]protocol.TimeSlot, n)
	for i := range out {
		out[i] = protocol.TimeSlot{
			Datetime:  time.Now().Add(time.Duration(i) * time.Hour),
			Duration:  30,
			Available: true,
		}
	}
	return out
}

func TestPutGetDelete(t *testing.T) {
	c := New(10, nil)

	if got := c.Get("sess-1"); got != nil {
		t.Errorf("expected nil for absent session, got %v", got)
	}

	c.Put("sess-1", slots(3))
	if got := c.Get("sess-1"); len(got) != 3 {
		t.Errorf("expected 3 slots, got %d", len(got))
	}

	// Put replaces, never appends.
	c.Put("sess-1", slots(5))
	if got := c.Get("sess-1"); len(got) != 5 {
		t.Errorf("expected 5 slots after replace, got %d", len(got))
	}

	c.Delete("sess-1")
	if got := c.Get("sess-1"); got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestSweep(t *testing.T) {
	c := New(3, nil)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("sess-%d", i), slots(2))
	}

	// At the threshold nothing is evicted.
	c.Sweep()
	if c.Len() != 3 {
		t.Errorf("expected 3 entries after sweep at threshold, got %d", c.Len())
	}

	c.Put("sess-3", slots(2))
	c.Sweep()
	if c.Len() != 0 {
		t.Errorf("expected full clear past threshold, got %d entries", c.Len())
	}
}
