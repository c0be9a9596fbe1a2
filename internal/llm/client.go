// Package llm adapts the OpenAI-compatible chat-completions API for the
// SDR conversation flow: system prompt, declared functions and the
// two-step chat / chat-with-function-result protocol.
package llm

import (
	"context"

	"github.com/sdrbot-io/sdrbot/pkg/protocol"
)

// Client is the abstraction over the LLM provider.
type Client interface {
	// Chat sends the conversation history plus the collected-fields
	// context and returns the model's reply, possibly carrying a
	// function call.
	Chat(ctx context.Context, history []protocol.Message, data *protocol.ConversationData) (*protocol.ChatResult, error)
	// ChatWithFunctionResult re-invokes the model after a dispatched
	// function, feeding back the first function result so the model can
	// phrase the outcome conversationally.
	ChatWithFunctionResult(ctx context.Context, history []protocol.Message, results []protocol.FunctionResult, data *protocol.ConversationData) (*protocol.ChatResult, error)
}

// Profile shapes the SDR persona embedded in the system prompt.
type Profile struct {
	ProductName        string
	ProductDescription string
	CompanyName        string
	Tone               string
}
