package protocol

import "time"

// Message roles as stored and as sent to the LLM.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single persisted chat message belonging to one session.
type Message struct {
	ID        int64     `json:"id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// FunctionCall is the LLM requesting that the host run one named function.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ChatResult is the parsed reply from the LLM adapter: free text plus any
// function calls the model requested. The adapter surfaces at most one.
type ChatResult struct {
	Message       string         `json:"message"`
	FunctionCalls []FunctionCall `json:"function_calls,omitempty"`
}

// HasFunctionCalls returns true if the model requested a function execution.
func (r *ChatResult) HasFunctionCalls() bool {
	return len(r.FunctionCalls) > 0
}

// FunctionResponse is the structured outcome of one dispatched function.
// It never carries a Go error: failures are captured in Error so the
// orchestrator can feed them back to the model.
type FunctionResponse struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// FunctionResult pairs a dispatched function's name with its response.
type FunctionResult struct {
	Name     string           `json:"name"`
	Response FunctionResponse `json:"response"`
}

// FunctionDefinition describes one invokable function in the OpenAI
// function-calling schema format.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
