package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.DB().Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	expires := time.Now().Add(30 * time.Minute)

	sess, err := s.CreateSession("sess-1", expires)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.Status != protocol.SessionActive {
		t.Errorf("expected active, got %q", sess.Status)
	}

	got, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != "sess-1" || got.Status != protocol.SessionActive {
		t.Errorf("unexpected session: %+v", got)
	}

	later := time.Now().Add(time.Hour)
	if err := s.ExtendSession("sess-1", later); err != nil {
		t.Fatalf("extend: %v", err)
	}
	got, _ = s.GetSession("sess-1")
	if got.ExpiresAt.Sub(later).Abs() > time.Second {
		t.Errorf("expected expiry ~%v, got %v", later, got.ExpiresAt)
	}

	if err := s.UpdateSessionEmail("sess-1", "ana@empresa.com"); err != nil {
		t.Fatalf("update email: %v", err)
	}
	if err := s.UpdateSessionStatus("sess-1", protocol.SessionCompleted); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = s.GetSession("sess-1")
	if got.Email != "ana@empresa.com" || got.Status != protocol.SessionCompleted {
		t.Errorf("unexpected session after updates: %+v", got)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateSessionStatus("missing", protocol.SessionExpired); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestExpireStaleSessions(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("old", time.Now().Add(-time.Minute))
	s.CreateSession("fresh", time.Now().Add(time.Hour))

	n, err := s.ExpireStaleSessions(time.Now())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired, got %d", n)
	}

	old, _ := s.GetSession("old")
	if old.Status != protocol.SessionExpired {
		t.Errorf("expected expired, got %q", old.Status)
	}
	fresh, _ := s.GetSession("fresh")
	if fresh.Status != protocol.SessionActive {
		t.Errorf("expected active, got %q", fresh.Status)
	}
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", time.Now().Add(time.Hour))

	for i, content := range []string{"olá", "oi, tudo bem?", "quero saber mais"} {
		role := protocol.RoleUser
		if i == 1 {
			role = protocol.RoleAssistant
		}
		if err := s.AppendMessage("sess-1", protocol.Message{Role: role, Content: content}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := s.ListMessages("sess-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "olá" || msgs[2].Content != "quero saber mais" {
		t.Errorf("messages out of order: %v", msgs)
	}
	if msgs[1].Role != protocol.RoleAssistant {
		t.Errorf("expected assistant role, got %q", msgs[1].Role)
	}

	limited, _ := s.ListMessages("sess-1", 2)
	if len(limited) != 2 {
		t.Errorf("expected 2 messages with limit, got %d", len(limited))
	}
}

func TestConversationData(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", time.Now().Add(time.Hour))

	s.SaveField("sess-1", protocol.FieldName, "Ana")
	s.SaveField("sess-1", protocol.FieldEmail, "ana@empresa.com")
	s.SaveField("sess-1", protocol.FieldInterestConfirmed, "true")
	// last write wins
	s.SaveField("sess-1", protocol.FieldName, "Ana Silva")

	data, err := s.GetConversationData("sess-1")
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if data.Name != "Ana Silva" {
		t.Errorf("expected updated name, got %q", data.Name)
	}
	if data.Email != "ana@empresa.com" {
		t.Errorf("unexpected email %q", data.Email)
	}
	if data.InterestConfirmed == nil || !*data.InterestConfirmed {
		t.Errorf("expected interest confirmed true, got %v", data.InterestConfirmed)
	}
	if len(data.CollectedFields) != 3 {
		t.Errorf("expected 3 collected fields, got %v", data.CollectedFields)
	}
	if !data.Has(protocol.FieldEmail) || data.Has(protocol.FieldPhone) {
		t.Errorf("Has reported wrong fields: %v", data.CollectedFields)
	}
}

func TestLeadCreateAndUpdate(t *testing.T) {
	s := newTestStore(t)

	lead, err := s.CreateLead(&protocol.Lead{
		Email:   "ana@empresa.com",
		Name:    "Ana",
		Company: "Empresa X",
		Status:  protocol.LeadQualified,
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if lead.ID == "" {
		t.Fatal("expected generated lead id")
	}

	// Partial snapshot: empty fields keep stored values.
	updated, err := s.UpdateLead("ana@empresa.com", &protocol.Lead{
		Email:             "ana@empresa.com",
		Phone:             "+5511999990000",
		InterestConfirmed: true,
		Status:            protocol.LeadMeetingScheduled,
	})
	if err != nil {
		t.Fatalf("update lead: %v", err)
	}
	if updated.Name != "Ana" || updated.Company != "Empresa X" {
		t.Errorf("expected stored fields kept, got %+v", updated)
	}
	if updated.Phone != "+5511999990000" {
		t.Errorf("expected phone set, got %q", updated.Phone)
	}
	if !updated.InterestConfirmed || updated.Status != protocol.LeadMeetingScheduled {
		t.Errorf("expected status/interest written, got %+v", updated)
	}
}

func TestLeadUniqueEmail(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateLead(&protocol.Lead{Email: "dup@x.com", Status: protocol.LeadNew}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateLead(&protocol.Lead{Email: "dup@x.com", Status: protocol.LeadNew}); err == nil {
		t.Error("expected unique constraint error on duplicate email")
	}
}

func TestSetLeadCardID(t *testing.T) {
	s := newTestStore(t)
	s.CreateLead(&protocol.Lead{Email: "ana@x.com", Status: protocol.LeadQualified})

	if err := s.SetLeadCardID("ana@x.com", "card-42"); err != nil {
		t.Fatalf("set card id: %v", err)
	}
	lead, _ := s.GetLeadByEmail("ana@x.com")
	if lead.CRMCardID != "card-42" {
		t.Errorf("expected card-42, got %q", lead.CRMCardID)
	}

	if err := s.SetLeadCardID("missing@x.com", "card-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMeetings(t *testing.T) {
	s := newTestStore(t)
	lead, _ := s.CreateLead(&protocol.Lead{Email: "ana@x.com", Status: protocol.LeadQualified})

	when := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	m, err := s.CreateMeeting(&protocol.Meeting{
		LeadID:          lead.ID,
		SessionID:       "sess-1",
		Datetime:        when,
		Link:            "https://cal.example/m/abc",
		CalendarEventID: "evt-1",
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if m.ID == "" || m.Status != protocol.MeetingScheduled {
		t.Errorf("unexpected meeting: %+v", m)
	}

	if err := s.UpdateMeetingStatus(m.ID, protocol.MeetingCancelled); err != nil {
		t.Fatalf("update status: %v", err)
	}

	meetings, err := s.ListMeetingsByLead(lead.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("expected 1 meeting, got %d", len(meetings))
	}
	if meetings[0].Status != protocol.MeetingCancelled {
		t.Errorf("expected cancelled, got %q", meetings[0].Status)
	}
	if !meetings[0].Datetime.Equal(when) {
		t.Errorf("expected %v, got %v", when, meetings[0].Datetime)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(); err != nil {
		t.Errorf("ping: %v", err)
	}
}
