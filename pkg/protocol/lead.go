package protocol

import "time"

// LeadStatus is the CRM-facing pipeline state of a lead.
type LeadStatus string

const (
	LeadNew              LeadStatus = "new"
	LeadContacted        LeadStatus = "contacted"
	LeadQualified        LeadStatus = "qualified"
	LeadMeetingScheduled LeadStatus = "meeting_scheduled"
	LeadClosedWon        LeadStatus = "closed_won"
	LeadClosedLost       LeadStatus = "closed_lost"
)

// Lead is the prospect record, keyed by email. Email is immutable once the
// lead exists; a returning email across sessions updates the same lead.
type Lead struct {
	ID                string     `json:"id,omitempty"`
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	Company           string     `json:"company,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Need              string     `json:"need,omitempty"`
	InterestConfirmed bool       `json:"interest_confirmed"`
	Status            LeadStatus `json:"status"`
	CRMCardID         string     `json:"crm_card_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty"`
	LastContactAt     time.Time  `json:"last_contact_at,omitempty"`
}

// MeetingStatus is the state of a scheduled meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingConfirmed MeetingStatus = "confirmed"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
	MeetingNoShow    MeetingStatus = "no_show"
)

// Meeting links a lead and a session to a booked calendar event.
// Created exactly once per successful booking.
type Meeting struct {
	ID              string        `json:"id,omitempty"`
	LeadID          string        `json:"lead_id"`
	SessionID       string        `json:"session_id"`
	Datetime        time.Time     `json:"meeting_datetime"`
	Link            string        `json:"meeting_link,omitempty"`
	CalendarEventID string        `json:"calendar_event_id,omitempty"`
	Status          MeetingStatus `json:"status"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at,omitempty"`
}

// TimeSlot is a candidate meeting window offered by the calendar provider.
// Slots are transient: they live only in the slot cache.
type TimeSlot struct {
	Datetime  time.Time `json:"datetime"`
	Duration  int       `json:"duration"` // minutes
	Available bool      `json:"available"`
}

// Canonical field names of the collected field set.
const (
	FieldName              = "name"
	FieldEmail             = "email"
	FieldCompany           = "company"
	FieldPhone             = "phone"
	FieldNeed              = "need"
	FieldInterestConfirmed = "interestConfirmed"
)

// ConversationData is the sparse set of qualification fields collected
// from the visitor during one session. CollectedFields lists the field
// names present; each name appears at most once.
type ConversationData struct {
	SessionID         string   `json:"session_id"`
	Name              string   `json:"name,omitempty"`
	Email             string   `json:"email,omitempty"`
	Company           string   `json:"company,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Need              string   `json:"need,omitempty"`
	InterestConfirmed *bool    `json:"interest_confirmed,omitempty"`
	CollectedFields   []string `json:"collected_fields"`
}

// Has reports whether the named field has been collected.
func (d *ConversationData) Has(field string) bool {
	for _, f := range d.CollectedFields {
		if f == field {
			return true
		}
	}
	return false
}
