// Package calendar wraps the scheduling provider (Cal.com style REST API)
// behind a narrow list/book/cancel contract.
package calendar

import (
	"context"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Attendee identifies who the meeting is booked for.
type Attendee struct {
	Name    string
	Email   string
	Company string
}

// Booking is the provider's confirmation of a created event.
type Booking struct {
	EventID     string
	MeetingLink string
}

// Client is the abstraction over the scheduling provider.
type Client interface {
	// ListSlots returns available slots for up to daysAhead days.
	ListSlots(ctx context.Context, daysAhead int) ([]protocol.TimeSlot, error)
	// Book creates an event for the given slot and attendee.
	Book(ctx context.Context, slot protocol.TimeSlot, attendee Attendee) (*Booking, error)
	// Cancel deletes a previously booked event.
	Cancel(ctx context.Context, eventID string) error
}
