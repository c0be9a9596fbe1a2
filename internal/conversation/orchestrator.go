// Package conversation drives the chat loop: session lifecycle, message
// persistence, the model round trip and function-call dispatch.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/internal/dispatch"
	"github.com/sdrbot-io/sdrbot/internal/llm"
	"github.com/sdrbot-io/sdrbot/internal/store"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Reply is the outcome of one chat turn.
type Reply struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// SessionInfo describes a freshly started session.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// History is a session transcript.
type History struct {
	SessionID string                 `json:"sessionId"`
	Messages  []protocol.Message     `json:"messages"`
	Status    protocol.SessionStatus `json:"status"`
}

// Orchestrator owns one end-to-end conversation turn.
type Orchestrator struct {
	store       store.Store
	llm         llm.Client
	dispatcher  *dispatch.Dispatcher
	companyName string
	productName string
	timeout     time.Duration // sliding session expiry window
	maxMessages int           // history cap per model call
	logger      *slog.Logger
}

// New creates an orchestrator.
func New(st store.Store, client llm.Client, d *dispatch.Dispatcher, companyName, productName string, timeout time.Duration, maxMessages int, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if maxMessages <= 0 {
		maxMessages = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       st,
		llm:         client,
		dispatcher:  d,
		companyName: companyName,
		productName: productName,
		timeout:     timeout,
		maxMessages: maxMessages,
		logger:      logger,
	}
}

// StartSession creates a session seeded with the greeting message.
func (o *Orchestrator) StartSession(ctx context.Context) (*SessionInfo, error) {
	id := uuid.NewString()
	session, err := o.store.CreateSession(id, time.Now().Add(o.timeout))
	if err != nil {
		return nil, fmt.Errorf("conversation: create session: %w", err)
	}

	greeting := o.greeting()
	if err := o.store.AppendMessage(id, protocol.Message{
		Role:      protocol.RoleAssistant,
		Content:   greeting,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("conversation: seed greeting: %w", err)
	}

	o.logger.Info("session started", "session_id", id)
	return &SessionInfo{
		SessionID: id,
		Message:   greeting,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// HandleMessage runs one chat turn. An empty sessionID, or one that no
// longer exists, starts a fresh session transparently.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("Mensagem não pode estar vazia")
	}

	sessionID, err := o.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}

	if err := o.store.AppendMessage(sessionID, protocol.Message{
		Role:      protocol.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("conversation: save message: %w", err)
	}

	history, err := o.store.ListMessages(sessionID, o.maxMessages)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	data, err := o.store.GetConversationData(sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load collected data: %w", err)
	}

	result, err := o.llm.Chat(ctx, history, data)
	if err != nil {
		return nil, err
	}

	if result.HasFunctionCalls() {
		results := make([]protocol.FunctionResult, 0, len(result.FunctionCalls))
		for _, call := range result.FunctionCalls {
			resp := o.dispatcher.Execute(ctx, call.Name, call.Args, sessionID)
			results = append(results, protocol.FunctionResult{Name: call.Name, Response: resp})
		}

		result, err = o.llm.ChatWithFunctionResult(ctx, history, results, data)
		if err != nil {
			return nil, err
		}
	}

	if err := o.store.AppendMessage(sessionID, protocol.Message{
		Role:      protocol.RoleAssistant,
		Content:   result.Message,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("conversation: save reply: %w", err)
	}

	return &Reply{SessionID: sessionID, Message: result.Message}, nil
}

// resolveSession loads and extends the session, or creates one when the
// id is empty or unknown. Expired sessions are marked and rejected.
func (o *Orchestrator) resolveSession(sessionID string) (string, error) {
	if sessionID != "" {
		session, err := o.store.GetSession(sessionID)
		switch {
		case err == nil:
			if time.Now().After(session.ExpiresAt) {
				if err := o.store.UpdateSessionStatus(sessionID, protocol.SessionExpired); err != nil {
					o.logger.Warn("session expiry update failed", "session_id", sessionID, "error", err)
				}
				return "", apperr.Validation("Sessão expirada. Por favor, inicie uma nova conversa.")
			}
			if err := o.store.ExtendSession(sessionID, time.Now().Add(o.timeout)); err != nil {
				return "", fmt.Errorf("conversation: extend session: %w", err)
			}
			return sessionID, nil
		case errors.Is(err, store.ErrNotFound):
			// fall through to create
		default:
			return "", fmt.Errorf("conversation: load session: %w", err)
		}
	}

	id := uuid.NewString()
	if _, err := o.store.CreateSession(id, time.Now().Add(o.timeout)); err != nil {
		return "", fmt.Errorf("conversation: create session: %w", err)
	}
	o.logger.Info("session started", "session_id", id)
	return id, nil
}

// History returns the transcript of a session.
func (o *Orchestrator) History(ctx context.Context, sessionID string) (*History, error) {
	if sessionID == "" {
		return nil, apperr.Validation("SessionId é obrigatório")
	}
	session, err := o.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Sessão não encontrada")
		}
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	messages, err := o.store.ListMessages(sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	return &History{SessionID: sessionID, Messages: messages, Status: session.Status}, nil
}

// EndSession marks a session completed.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperr.Validation("SessionId é obrigatório")
	}
	if err := o.store.UpdateSessionStatus(sessionID, protocol.SessionCompleted); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Sessão não encontrada")
		}
		return fmt.Errorf("conversation: end session: %w", err)
	}
	o.logger.Info("session ended", "session_id", sessionID)
	return nil
}

func (o *Orchestrator) greeting() string {
	company := o.companyName
	if company == "" {
		company = "nossa empresa"
	}
	product := o.productName
	if product == "" {
		product = "produto/serviço"
	}
	return fmt.Sprintf(`Olá! Eu sou o assistente virtual da %s.

Estou aqui para ajudá-lo a conhecer nosso %s e entender como podemos atender suas necessidades.

Para começar, como posso te chamar?`, company, product)
}
