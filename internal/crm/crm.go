// Package crm wraps the CRM provider (Pipefy style GraphQL API) behind
// card upsert/comment calls plus the two composite lead-registration
// helpers the dispatcher uses.
package crm

import (
	"context"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Client is the abstraction over the CRM provider.
type Client interface {
	// FindCardByEmail returns the card id for a lead email, or "" when
	// no card matches.
	FindCardByEmail(ctx context.Context, email string) (string, error)
	// CreateCard creates a card from a lead snapshot. meeting may be nil.
	CreateCard(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error)
	// UpdateCard rewrites a card's fields. meeting may be nil.
	UpdateCard(ctx context.Context, cardID string, lead *protocol.Lead, meeting *protocol.Meeting) error
	// UpsertCard updates the card found by the lead's email, or creates
	// one. Returns the card id.
	UpsertCard(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error)
	// AddComment attaches a comment to a card.
	AddComment(ctx context.Context, cardID, text string) error
	// MoveCard moves a card to another funnel phase.
	MoveCard(ctx context.Context, cardID, phaseID string) error

	// RegisterNoInterestLead marks the lead closed_lost, upserts its
	// card and leaves an explanatory comment. Returns the card id.
	RegisterNoInterestLead(ctx context.Context, lead *protocol.Lead) (string, error)
	// RegisterQualifiedLead marks the lead meeting_scheduled, upserts
	// its card with the meeting fields and comments the booking details.
	// Returns the card id.
	RegisterQualifiedLead(ctx context.Context, lead *protocol.Lead, meeting *protocol.Meeting) (string, error)
}
