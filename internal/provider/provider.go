// Package provider defines the language-model interface the engine
// works against, plus an OpenAI-compatible HTTP client. The core only
// needs the three primitives below and typed request/response shapes.
package provider

import (
	"context"
	"sync"
)

// Message roles on the LLM wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// LLMProvider is the interface for LLM API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// ChatStream sends a completion request and returns a live stream.
	// Callers may consume Deltas before the full response is known.
	ChatStream(ctx context.Context, req *ChatRequest) (*Stream, error)
	// GenerateObject requests a value matching the given JSON schema and
	// unmarshals it into v.
	GenerateObject(ctx context.Context, req *ChatRequest, schema map[string]any, v any) error
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Stream is a live text stream plus a deferred final response.
type Stream struct {
	deltas <-chan string
	final  func() (*ChatResponse, error)
	once   sync.Once
	resp   *ChatResponse
	err    error
}

// NewStream builds a Stream over a delta channel. The producer closes
// deltas when the response is complete; final must block until then.
func NewStream(deltas <-chan string, final func() (*ChatResponse, error)) *Stream {
	return &Stream{deltas: deltas, final: final}
}

// Deltas returns the channel of incremental text fragments. The channel
// is closed when the response is complete.
func (s *Stream) Deltas() <-chan string { return s.deltas }

// Wait blocks until the response is complete and returns it.
func (s *Stream) Wait() (*ChatResponse, error) {
	s.once.Do(func() {
		s.resp, s.err = s.final()
	})
	return s.resp, s.err
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool call from the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function that can be called.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
