package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES chat_sessions(session_id),
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_data (
			session_id   TEXT NOT NULL,
			field_name   TEXT NOT NULL,
			field_value  TEXT NOT NULL,
			collected_at TEXT NOT NULL,
			PRIMARY KEY (session_id, field_name)
		);

		CREATE TABLE IF NOT EXISTS leads (
			id                 TEXT PRIMARY KEY,
			email              TEXT NOT NULL UNIQUE,
			name               TEXT NOT NULL DEFAULT '',
			company            TEXT NOT NULL DEFAULT '',
			phone              TEXT NOT NULL DEFAULT '',
			need               TEXT NOT NULL DEFAULT '',
			interest_confirmed INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL DEFAULT 'new',
			crm_card_id        TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL,
			last_contact_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meetings (
			id                TEXT PRIMARY KEY,
			lead_id           TEXT NOT NULL REFERENCES leads(id),
			session_id        TEXT NOT NULL,
			meeting_datetime  TEXT NOT NULL,
			meeting_link      TEXT NOT NULL DEFAULT '',
			calendar_event_id TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'scheduled',
			notes             TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_meetings_lead ON meetings(lead_id);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// --- sessions ---

func (s *SQLiteStore) CreateSession(id string, expiresAt time.Time) (*protocol.Session, error) {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO chat_sessions (session_id, status, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, string(protocol.SessionActive),
		now.Format(time.RFC3339), now.Format(time.RFC3339), expiresAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &protocol.Session{
		ID:        id,
		Status:    protocol.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *SQLiteStore) GetSession(id string) (*protocol.Session, error) {
	row := s.db.QueryRow(`
		SELECT session_id, email, status, created_at, updated_at, expires_at
		FROM chat_sessions WHERE session_id = ?`, id)

	var sess protocol.Session
	var status, createdAt, updatedAt, expiresAt string
	err := row.Scan(&sess.ID, &sess.Email, &status, &createdAt, &updatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}

	sess.Status = protocol.SessionStatus(status)
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return &sess, nil
}

func (s *SQLiteStore) ExtendSession(id string, expiresAt time.Time) error {
	return s.updateSession(id, `expires_at = ?`, expiresAt.Format(time.RFC3339))
}

func (s *SQLiteStore) UpdateSessionStatus(id string, status protocol.SessionStatus) error {
	return s.updateSession(id, `status = ?`, string(status))
}

func (s *SQLiteStore) UpdateSessionEmail(id, email string) error {
	return s.updateSession(id, `email = ?`, email)
}

func (s *SQLiteStore) updateSession(id, set string, value any) error {
	result, err := s.db.Exec(
		`UPDATE chat_sessions SET `+set+`, updated_at = ? WHERE session_id = ?`,
		value, time.Now().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ExpireStaleSessions(now time.Time) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE chat_sessions SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at < ?`,
		string(protocol.SessionExpired), now.Format(time.RFC3339),
		string(protocol.SessionActive), now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("store: expire sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// --- messages ---

func (s *SQLiteStore) AppendMessage(sessionID string, msg protocol.Message) error {
	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(sessionID string, limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.Query(`
		SELECT id, role, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []protocol.Message
	for rows.Next() {
		var m protocol.Message
		var ts string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		m.SessionID = sessionID
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// --- conversation data ---

func (s *SQLiteStore) SaveField(sessionID, field, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO conversation_data (session_id, field_name, field_value, collected_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, field_name) DO UPDATE SET
			field_value = excluded.field_value, collected_at = excluded.collected_at`,
		sessionID, field, value, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: save field: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversationData(sessionID string) (*protocol.ConversationData, error) {
	rows, err := s.db.Query(`
		SELECT field_name, field_value FROM conversation_data WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: get conversation data: %w", err)
	}
	defer rows.Close()

	data := &protocol.ConversationData{SessionID: sessionID, CollectedFields: []string{}}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("store: scan field: %w", err)
		}
		switch name {
		case protocol.FieldName:
			data.Name = value
		case protocol.FieldEmail:
			data.Email = value
		case protocol.FieldCompany:
			data.Company = value
		case protocol.FieldPhone:
			data.Phone = value
		case protocol.FieldNeed:
			data.Need = value
		case protocol.FieldInterestConfirmed:
			confirmed := value == "true"
			data.InterestConfirmed = &confirmed
		}
		data.CollectedFields = append(data.CollectedFields, name)
	}
	return data, rows.Err()
}

// --- leads ---

func (s *SQLiteStore) CreateLead(lead *protocol.Lead) (*protocol.Lead, error) {
	out := *lead
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	now := time.Now()
	out.CreatedAt = now
	out.UpdatedAt = now
	out.LastContactAt = now

	_, err := s.db.Exec(`
		INSERT INTO leads (id, email, name, company, phone, need, interest_confirmed, status, crm_card_id, created_at, updated_at, last_contact_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Email, out.Name, out.Company, out.Phone, out.Need,
		boolToInt(out.InterestConfirmed), string(out.Status), out.CRMCardID,
		now.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: create lead: %w", err)
	}
	return &out, nil
}

func (s *SQLiteStore) UpdateLead(email string, lead *protocol.Lead) (*protocol.Lead, error) {
	now := time.Now().Format(time.RFC3339)
	// Empty snapshot fields keep the stored value; status and
	// interest_confirmed are always written.
	result, err := s.db.Exec(`
		UPDATE leads SET
			name    = COALESCE(NULLIF(?, ''), name),
			company = COALESCE(NULLIF(?, ''), company),
			phone   = COALESCE(NULLIF(?, ''), phone),
			need    = COALESCE(NULLIF(?, ''), need),
			interest_confirmed = ?,
			status             = ?,
			updated_at         = ?,
			last_contact_at    = ?
		WHERE email = ?`,
		lead.Name, lead.Company, lead.Phone, lead.Need,
		boolToInt(lead.InterestConfirmed), string(lead.Status), now, now, email)
	if err != nil {
		return nil, fmt.Errorf("store: update lead: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("lead %q: %w", email, ErrNotFound)
	}
	return s.GetLeadByEmail(email)
}

func (s *SQLiteStore) GetLeadByEmail(email string) (*protocol.Lead, error) {
	row := s.db.QueryRow(`
		SELECT id, email, name, company, phone, need, interest_confirmed, status, crm_card_id, created_at, updated_at, last_contact_at
		FROM leads WHERE email = ?`, email)

	var l protocol.Lead
	var confirmed int
	var status, createdAt, updatedAt, lastContactAt string
	err := row.Scan(&l.ID, &l.Email, &l.Name, &l.Company, &l.Phone, &l.Need,
		&confirmed, &status, &l.CRMCardID, &createdAt, &updatedAt, &lastContactAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get lead: %w", err)
	}

	l.InterestConfirmed = confirmed != 0
	l.Status = protocol.LeadStatus(status)
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	l.LastContactAt, _ = time.Parse(time.RFC3339, lastContactAt)
	return &l, nil
}

func (s *SQLiteStore) SetLeadCardID(email, cardID string) error {
	result, err := s.db.Exec(`
		UPDATE leads SET crm_card_id = ?, updated_at = ? WHERE email = ?`,
		cardID, time.Now().Format(time.RFC3339), email)
	if err != nil {
		return fmt.Errorf("store: set lead card id: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("lead %q: %w", email, ErrNotFound)
	}
	return nil
}

// --- meetings ---

func (s *SQLiteStore) CreateMeeting(m *protocol.Meeting) (*protocol.Meeting, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = protocol.MeetingScheduled
	}
	out.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO meetings (id, lead_id, session_id, meeting_datetime, meeting_link, calendar_event_id, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.LeadID, out.SessionID, out.Datetime.Format(time.RFC3339),
		out.Link, out.CalendarEventID, string(out.Status), out.Notes,
		out.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("store: create meeting: %w", err)
	}
	return &out, nil
}

func (s *SQLiteStore) UpdateMeetingStatus(id string, status protocol.MeetingStatus) error {
	result, err := s.db.Exec(`UPDATE meetings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: update meeting status: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("meeting %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListMeetingsByLead(leadID string) ([]protocol.Meeting, error) {
	rows, err := s.db.Query(`
		SELECT id, lead_id, session_id, meeting_datetime, meeting_link, calendar_event_id, status, notes, created_at
		FROM meetings WHERE lead_id = ? ORDER BY meeting_datetime DESC`, leadID)
	if err != nil {
		return nil, fmt.Errorf("store: list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []protocol.Meeting
	for rows.Next() {
		var m protocol.Meeting
		var dt, status, createdAt string
		if err := rows.Scan(&m.ID, &m.LeadID, &m.SessionID, &dt, &m.Link,
			&m.CalendarEventID, &status, &m.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan meeting: %w", err)
		}
		m.Datetime, _ = time.Parse(time.RFC3339, dt)
		m.Status = protocol.MeetingStatus(status)
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping() error {
	var one int
	if err := s.db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
