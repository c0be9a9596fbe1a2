package protocol

import "time"

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionExpired   SessionStatus = "expired"
	SessionCompleted SessionStatus = "completed"
)

// Session is one bounded conversation between a visitor and the assistant.
// Expired and completed are terminal: no further turns are processed.
type Session struct {
	ID        string        `json:"session_id"`
	Email     string        `json:"email,omitempty"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}
