package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sdrbot-io/sdrbot/internal/apperr"
	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

const apologyReply = "Desculpe, ocorreu um erro ao processar sua solicitação."

// OpenAIClient implements Client for any OpenAI-compatible API.
type OpenAIClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	profile Profile
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *OpenAIClient) { c.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *OpenAIClient) { c.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAIClient) { c.client = hc }
}

// NewOpenAI creates a new OpenAI-compatible chat client.
func NewOpenAI(apiKey string, profile Profile, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://api.openai.com/v1",
		apiKey:  apiKey,
		model:   "gpt-4-turbo-preview",
		profile: profile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenAIClient) Chat(ctx context.Context, history []protocol.Message, data *protocol.ConversationData) (*protocol.ChatResult, error) {
	msgs := c.buildMessages(history, data)
	return c.complete(ctx, msgs)
}

func (c *OpenAIClient) ChatWithFunctionResult(ctx context.Context, history []protocol.Message, results []protocol.FunctionResult, data *protocol.ConversationData) (*protocol.ChatResult, error) {
	msgs := c.buildMessages(history, data)

	// Only the first function result is threaded back to the model.
	first := results[0]
	payload, _ := json.Marshal(first.Response)
	msgs = append(msgs, openaiMessage{
		Role: "assistant",
		FunctionCall: &openaiFunctionCall{
			Name:      first.Name,
			Arguments: string(payload),
		},
	})
	msgs = append(msgs, openaiMessage{
		Role:    "function",
		Name:    first.Name,
		Content: strPtr(string(payload)),
	})

	return c.complete(ctx, msgs)
}

func (c *OpenAIClient) buildMessages(history []protocol.Message, data *protocol.ConversationData) []openaiMessage {
	msgs := make([]openaiMessage, 0, len(history)+1)
	msgs = append(msgs, openaiMessage{
		Role:    "system",
		Content: strPtr(systemPrompt(c.profile) + conversationContext(data)),
	})
	for _, m := range history {
		role := "user"
		if m.Role == protocol.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, openaiMessage{Role: role, Content: strPtr(m.Content)})
	}
	return msgs
}

func (c *OpenAIClient) complete(ctx context.Context, msgs []openaiMessage) (*protocol.ChatResult, error) {
	body := openaiRequest{
		Model:        c.model,
		Messages:     msgs,
		Functions:    functionDeclarations(),
		FunctionCall: "auto",
		Temperature:  0.7,
		MaxTokens:    1000,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Integration("OpenAI", "falha de comunicação com a API", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Integration("OpenAI", "falha ao ler resposta", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.Integration("OpenAI", "limite de requisições excedido", nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.Integration("OpenAI", "API key inválida", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.Integration("OpenAI",
			fmt.Sprintf("erro da API (status %d): %s", resp.StatusCode, apiErrorMessage(respBody)), nil)
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, apperr.Integration("OpenAI", "resposta inválida da API", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, apperr.Integration("OpenAI", "resposta vazia da API", nil)
	}

	return parseChoice(oaiResp.Choices[0]), nil
}

// parseChoice extracts the reply text and at most one function call.
// Malformed function arguments are downgraded to an apology instead of
// failing the turn.
func parseChoice(choice openaiChoice) *protocol.ChatResult {
	msg := choice.Message
	result := &protocol.ChatResult{}
	if msg.Content != nil {
		result.Message = *msg.Content
	}

	if msg.FunctionCall != nil {
		var args map[string]any
		if err := json.Unmarshal([]byte(msg.FunctionCall.Arguments), &args); err != nil {
			if result.Message == "" {
				result.Message = apologyReply
			}
			return result
		}
		result.FunctionCalls = []protocol.FunctionCall{{
			Name: msg.FunctionCall.Name,
			Args: args,
		}}
	}
	return result
}

func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}

func strPtr(s string) *string { return &s }

// --- OpenAI wire format types ---

type openaiRequest struct {
	Model        string                        `json:"model"`
	Messages     []openaiMessage               `json:"messages"`
	Functions    []protocol.FunctionDefinition `json:"functions,omitempty"`
	FunctionCall string                        `json:"function_call,omitempty"`
	Temperature  float64                       `json:"temperature,omitempty"`
	MaxTokens    int                           `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role         string              `json:"role"`
	Content      *string             `json:"content"`
	Name         string              `json:"name,omitempty"`
	FunctionCall *openaiFunctionCall `json:"function_call,omitempty"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}
