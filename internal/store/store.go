package store

import (
	"errors"
	"time"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for sessions, messages, collected
// conversation fields, leads and meetings. Operations are atomic at the
// single-row level; there are no cross-entity transactions.
type Store interface {
	// CreateSession inserts a new active session with the given expiry.
	CreateSession(id string, expiresAt time.Time) (*protocol.Session, error)
	// GetSession retrieves a session by ID.
	GetSession(id string) (*protocol.Session, error)
	// ExtendSession slides the expiry window forward.
	ExtendSession(id string, expiresAt time.Time) error
	// UpdateSessionStatus changes a session's lifecycle status.
	UpdateSessionStatus(id string, status protocol.SessionStatus) error
	// UpdateSessionEmail stamps the captured contact email on the session.
	UpdateSessionEmail(id, email string) error
	// ExpireStaleSessions marks active sessions past their expiry as
	// expired and returns how many were affected.
	ExpireStaleSessions(now time.Time) (int64, error)

	// AppendMessage adds one message to a session's history.
	AppendMessage(sessionID string, msg protocol.Message) error
	// ListMessages returns up to limit messages in chronological order.
	ListMessages(sessionID string, limit int) ([]protocol.Message, error)

	// SaveField upserts one collected field (last write wins).
	SaveField(sessionID, field, value string) error
	// GetConversationData assembles the collected field set for a session.
	GetConversationData(sessionID string) (*protocol.ConversationData, error)

	// CreateLead inserts a new lead. Email must be unique.
	CreateLead(lead *protocol.Lead) (*protocol.Lead, error)
	// UpdateLead updates the lead with the given email. Empty string
	// fields in the snapshot leave the stored value untouched.
	UpdateLead(email string, lead *protocol.Lead) (*protocol.Lead, error)
	// GetLeadByEmail retrieves a lead by its natural key.
	GetLeadByEmail(email string) (*protocol.Lead, error)
	// SetLeadCardID records the external CRM card id on a lead.
	SetLeadCardID(email, cardID string) error

	// CreateMeeting inserts a booked meeting.
	CreateMeeting(m *protocol.Meeting) (*protocol.Meeting, error)
	// UpdateMeetingStatus changes a meeting's status.
	UpdateMeetingStatus(id string, status protocol.MeetingStatus) error
	// ListMeetingsByLead returns a lead's meetings, newest first.
	ListMeetingsByLead(leadID string) ([]protocol.Meeting, error)

	// Ping verifies the backing database is reachable.
	Ping() error
}
