package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/internal/calendar"
	"github.com/sdrbot-io/sdrbot/internal/dispatch"
	"github.com/sdrbot-io/sdrbot/internal/slotcache"
	"github.com/sdrbot-io/sdrbot/internal/store"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// scriptedLLM returns canned results: first Chat result, then the
// follow-up for function results.
type scriptedLLM struct {
	chat       *protocol.ChatResult
	chatErr    error
	followUp   *protocol.ChatResult
	gotResults []protocol.FunctionResult
	chatCalls  int
}

func (s *scriptedLLM) Chat(ctx context.Context, history []protocol.Message, data *protocol.ConversationData) (*protocol.ChatResult, error) {
	s.chatCalls++
	return s.chat, s.chatErr
}

func (s *scriptedLLM) ChatWithFunctionResult(ctx context.Context, history []protocol.Message, results []protocol.FunctionResult, data *protocol.ConversationData) (*protocol.ChatResult, error) {
	s.gotResults = results
	return s.followUp, nil
}

type stubCalendar struct{}

func (stubCalendar) ListSlots(ctx context.Context, daysAhead int) ([]protocol.TimeSlot, error) {
	return nil, nil
}
func (stubCalendar) Book(ctx context.Context, slot protocol.TimeSlot, a calendar.Attendee) (*calendar.Booking, error) {
	return &calendar.Booking{}, nil
}
func (stubCalendar) Cancel(ctx context.Context, eventID string) error { return nil }

type stubCRM struct{}

func (stubCRM) FindCardByEmail(ctx context.Context, email string) (string, error) { return "", nil }
func (stubCRM) CreateCard(ctx context.Context, l *protocol.Lead, m *protocol.Meeting) (string, error) {
	return "c", nil
}
func (stubCRM) UpdateCard(ctx context.Context, id string, l *protocol.Lead, m *protocol.Meeting) error {
	return nil
}
func (stubCRM) UpsertCard(ctx context.Context, l *protocol.Lead, m *protocol.Meeting) (string, error) {
	return "c", nil
}
func (stubCRM) AddComment(ctx context.Context, id, text string) error  { return nil }
func (stubCRM) MoveCard(ctx context.Context, id, phaseID string) error { return nil }
func (stubCRM) RegisterNoInterestLead(ctx context.Context, l *protocol.Lead) (string, error) {
	return "c", nil
}
func (stubCRM) RegisterQualifiedLead(ctx context.Context, l *protocol.Lead, m *protocol.Meeting) (string, error) {
	return "c", nil
}

func newOrchestrator(t *testing.T, llmClient *scriptedLLM) (*Orchestrator, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.DB().Close() })

	d := dispatch.New(st, slotcache.New(100, nil), stubCalendar{}, stubCRM{}, nil, time.UTC, nil)
	o := New(st, llmClient, d, "TechSolutions", "Sistema de Automação", 30*time.Minute, 50, nil)
	return o, st
}

func TestStartSession(t *testing.T) {
	o, st := newOrchestrator(t, &scriptedLLM{})

	info, err := o.StartSession(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if info.SessionID == "" {
		t.Fatal("expected session id")
	}
	if !strings.Contains(info.Message, "TechSolutions") {
		t.Errorf("greeting missing company: %q", info.Message)
	}
	if !info.ExpiresAt.After(time.Now().Add(25 * time.Minute)) {
		t.Errorf("unexpected expiry %v", info.ExpiresAt)
	}

	msgs, _ := st.ListMessages(info.SessionID, 0)
	if len(msgs) != 1 || msgs[0].Role != protocol.RoleAssistant {
		t.Errorf("greeting not seeded: %v", msgs)
	}
}

func TestHandleMessage_EmptyRejected(t *testing.T) {
	o, _ := newOrchestrator(t, &scriptedLLM{})

	_, err := o.HandleMessage(context.Background(), "", "   ")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandleMessage_NewSessionWhenEmpty(t *testing.T) {
	llm := &scriptedLLM{chat: &protocol.ChatResult{Message: "Olá!"}}
	o, st := newOrchestrator(t, llm)

	reply, err := o.HandleMessage(context.Background(), "", "oi")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("expected created session id")
	}
	if reply.Message != "Olá!" {
		t.Errorf("unexpected reply %q", reply.Message)
	}

	msgs, _ := st.ListMessages(reply.SessionID, 0)
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant persisted, got %d", len(msgs))
	}
	if msgs[0].Role != protocol.RoleUser || msgs[0].Content != "oi" {
		t.Errorf("user message wrong: %+v", msgs[0])
	}
	if msgs[1].Role != protocol.RoleAssistant {
		t.Errorf("assistant message wrong: %+v", msgs[1])
	}
}

func TestHandleMessage_UnknownSessionStartsFresh(t *testing.T) {
	llm := &scriptedLLM{chat: &protocol.ChatResult{Message: "Olá!"}}
	o, _ := newOrchestrator(t, llm)

	reply, err := o.HandleMessage(context.Background(), "ghost-session", "oi")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.SessionID == "ghost-session" {
		t.Error("expected a fresh session id")
	}
}

func TestHandleMessage_ExpiredSession(t *testing.T) {
	llm := &scriptedLLM{chat: &protocol.ChatResult{Message: "Olá!"}}
	o, st := newOrchestrator(t, llm)

	st.CreateSession("old", time.Now().Add(-time.Minute))
	_, err := o.HandleMessage(context.Background(), "old", "oi")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Sessão expirada") {
		t.Errorf("unexpected message %q", err.Error())
	}

	sess, _ := st.GetSession("old")
	if sess.Status != protocol.SessionExpired {
		t.Errorf("session not marked expired: %q", sess.Status)
	}
}

func TestHandleMessage_SlidingExpiry(t *testing.T) {
	llm := &scriptedLLM{chat: &protocol.ChatResult{Message: "ok"}}
	o, st := newOrchestrator(t, llm)

	st.CreateSession("sess-1", time.Now().Add(time.Minute))
	if _, err := o.HandleMessage(context.Background(), "sess-1", "oi"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sess, _ := st.GetSession("sess-1")
	if !sess.ExpiresAt.After(time.Now().Add(25 * time.Minute)) {
		t.Errorf("expiry not extended: %v", sess.ExpiresAt)
	}
}

func TestHandleMessage_FunctionCallRoundTrip(t *testing.T) {
	llm := &scriptedLLM{
		chat: &protocol.ChatResult{
			FunctionCalls: []protocol.FunctionCall{
				{Name: "record_field", Args: map[string]any{"field": "nome", "value": "Ana"}},
				{Name: "record_field", Args: map[string]any{"field": "empresa", "value": "Empresa X"}},
			},
		},
		followUp: &protocol.ChatResult{Message: "Prazer, Ana!"},
	}
	o, st := newOrchestrator(t, llm)

	reply, err := o.HandleMessage(context.Background(), "", "me chamo Ana, da Empresa X")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Message != "Prazer, Ana!" {
		t.Errorf("unexpected reply %q", reply.Message)
	}

	// All calls dispatched in order, results collected for the follow-up.
	if len(llm.gotResults) != 2 {
		t.Fatalf("expected 2 function results, got %d", len(llm.gotResults))
	}
	if !llm.gotResults[0].Response.Success || !llm.gotResults[1].Response.Success {
		t.Errorf("unexpected results %+v", llm.gotResults)
	}

	data, _ := st.GetConversationData(reply.SessionID)
	if data.Name != "Ana" || data.Company != "Empresa X" {
		t.Errorf("fields not dispatched: %+v", data)
	}
}

func TestHandleMessage_LLMError(t *testing.T) {
	llm := &scriptedLLM{chatErr: apperr.Integration("OpenAI", "limite de requisições excedido", nil)}
	o, st := newOrchestrator(t, llm)

	_, err := o.HandleMessage(context.Background(), "", "oi")
	if apperr.KindOf(err) != apperr.KindIntegration {
		t.Fatalf("expected integration error, got %v", err)
	}

	// The user message is persisted even when the model call fails.
	var sessionID string
	rows, _ := st.DB().Query(`SELECT session_id FROM chat_messages LIMIT 1`)
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&sessionID)
	}
	if sessionID == "" {
		t.Error("user message not persisted before model call")
	}
}

func TestHistory(t *testing.T) {
	llm := &scriptedLLM{chat: &protocol.ChatResult{Message: "Olá!"}}
	o, _ := newOrchestrator(t, llm)

	reply, _ := o.HandleMessage(context.Background(), "", "oi")

	h, err := o.History(context.Background(), reply.SessionID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(h.Messages) != 2 || h.Status != protocol.SessionActive {
		t.Errorf("unexpected history %+v", h)
	}

	if _, err := o.History(context.Background(), "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
	if _, err := o.History(context.Background(), ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	o, st := newOrchestrator(t, &scriptedLLM{})
	info, _ := o.StartSession(context.Background())

	if err := o.EndSession(context.Background(), info.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	sess, _ := st.GetSession(info.SessionID)
	if sess.Status != protocol.SessionCompleted {
		t.Errorf("expected completed, got %q", sess.Status)
	}

	if err := o.EndSession(context.Background(), "missing"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestHandleMessage_StoreFailurePropagates(t *testing.T) {
	o, st := newOrchestrator(t, &scriptedLLM{chat: &protocol.ChatResult{Message: "ok"}})
	st.DB().Close()

	_, err := o.HandleMessage(context.Background(), "", "oi")
	if err == nil {
		t.Fatal("expected error with closed store")
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Errorf("unexpected not-found: %v", err)
	}
}
