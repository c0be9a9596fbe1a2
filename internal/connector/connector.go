// Package connector defines the contract for external chat channels
// (Telegram, web widget relays, etc.) that front the qualification bot.
package connector

import "context"

// Connector is the interface for external messaging platforms.
type Connector interface {
	// Name returns the connector type (e.g., "telegram").
	Name() string
	// Start begins listening for inbound messages. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
}

// Turn is one inbound visitor message bound to a bot session.
type Turn struct {
	Channel   string // connector name
	ChatID    string // platform-specific chat identifier
	SessionID string // bot session, empty starts a new one
	Content   string
}

// Reply is the assistant's answer to a Turn, carrying the session the
// turn was resolved to.
type Reply struct {
	SessionID string
	Content   string
}

// TurnHandler runs one chat turn for an inbound message.
type TurnHandler func(ctx context.Context, turn Turn) (*Reply, error)
