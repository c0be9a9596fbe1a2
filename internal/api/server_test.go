package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/internal/conversation"
	"github.com/sdrbot-io/sdrbot/internal/logbuf"
)

type fakeChat struct {
	startErr   error
	handleErr  error
	historyErr error
	endErr     error
	lastText   string
}

func (f *fakeChat) StartSession(ctx context.Context) (*conversation.SessionInfo, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &conversation.SessionInfo{SessionID: "sess-1", Message: "Olá!", ExpiresAt: time.Now().Add(30 * time.Minute)}, nil
}

func (f *fakeChat) HandleMessage(ctx context.Context, sessionID, text string) (*conversation.Reply, error) {
	f.lastText = text
	if f.handleErr != nil {
		return nil, f.handleErr
	}
	return &conversation.Reply{SessionID: "sess-1", Message: "resposta"}, nil
}

func (f *fakeChat) History(ctx context.Context, sessionID string) (*conversation.History, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &conversation.History{SessionID: sessionID, Status: "active"}, nil
}

func (f *fakeChat) EndSession(ctx context.Context, sessionID string) error {
	return f.endErr
}

type fakePinger struct{ err error }

func (f fakePinger) Ping() error { return f.err }

func newTestServer(t *testing.T, svc ChatService, db Pinger, cfg Config, logs LogQuerier) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	return NewServer(svc, db, cfg, logger, logs).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	} else {
		rdr = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{err: errors.New("locked")}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body["status"] != "error" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestStartSession(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["sessionId"] != "sess-1" || body["message"] != "Olá!" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestMessage(t *testing.T) {
	svc := &fakeChat{}
	h := newTestServer(t, svc, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/message", `{"sessionId":"sess-1","message":"oi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["message"] != "resposta" {
		t.Errorf("unexpected body %v", body)
	}
	if svc.lastText != "oi" {
		t.Errorf("message not forwarded: %q", svc.lastText)
	}
}

func TestMessage_InvalidJSON(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/api/chat/message", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestMessage_ValidationError(t *testing.T) {
	svc := &fakeChat{handleErr: apperr.Validation("Mensagem não pode estar vazia")}
	h := newTestServer(t, svc, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/message", `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["error"] != "Mensagem não pode estar vazia" {
		t.Errorf("validation message must pass through, got %v", body)
	}
}

func TestMessage_InternalErrorHidesDetail(t *testing.T) {
	svc := &fakeChat{handleErr: errors.New("pq: connection refused")}
	h := newTestServer(t, svc, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/message", `{"message":"oi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body["error"] != "Erro ao processar mensagem. Por favor, tente novamente." {
		t.Errorf("internal detail leaked: %v", body)
	}
}

func TestMessage_IntegrationError(t *testing.T) {
	svc := &fakeChat{handleErr: apperr.Integration("OpenAI", "quota excedida", nil)}
	h := newTestServer(t, svc, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/message", `{"message":"oi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if body["error"] != "Erro ao processar mensagem. Por favor, tente novamente." {
		t.Errorf("provider detail leaked: %v", body)
	}
}

func TestHistory_NotFound(t *testing.T) {
	svc := &fakeChat{historyErr: apperr.NotFound("Sessão não encontrada")}
	h := newTestServer(t, svc, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodGet, "/api/chat/history/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["error"] != "Sessão não encontrada" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestEndSession(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, nil)

	rec, body := doJSON(t, h, http.MethodPost, "/api/chat/end/sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["message"] != "Sessão encerrada com sucesso" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestLogs_RequiresAuth(t *testing.T) {
	buf := logbuf.New(10)
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{Key: "secret"}, buf)

	rec, _ := doJSON(t, h, http.MethodGet, "/api/logs", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs?level=warn&limit=5", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}

	var entries []logbuf.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("expected entry array, got %s", rec.Body.String())
	}
}

func TestLogs_FiltersLevel(t *testing.T) {
	buf := logbuf.New(10)
	buf.Write(logbuf.Entry{Time: time.Now(), Level: "INFO", Message: "hello"})
	buf.Write(logbuf.Entry{Time: time.Now(), Level: "ERROR", Message: "boom"})
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, buf)

	req := httptest.NewRequest(http.MethodGet, "/api/logs?level=error", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entries []logbuf.Entry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Message != "boom" {
		t.Errorf("unexpected entries %v", entries)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakeChat{}, fakePinger{}, Config{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/message", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
