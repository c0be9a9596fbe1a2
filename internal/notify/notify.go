// Package notify pushes sales-team alerts for qualification outcomes.
package notify

import (
	"context"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Notifier receives qualification outcomes. Implementations must be
// safe for concurrent use.
type Notifier interface {
	// MeetingBooked fires after a meeting is booked for a lead.
	MeetingBooked(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) error
	// LeadLost fires when a lead declines interest.
	LeadLost(ctx context.Context, lead *protocol.Lead) error
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) MeetingBooked(context.Context, *protocol.Lead, *protocol.Meeting) error { return nil }
func (Noop) LeadLost(context.Context, *protocol.Lead) error                         { return nil }
