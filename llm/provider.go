package llm

import (
	"context"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// ChatUsage reports token consumption for one completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is a provider-agnostic completion response.
type ChatResponse struct {
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model"`
	Content   string    `json:"content"`
	Usage     ChatUsage `json:"usage,omitempty"`
	Demo      bool      `json:"demo,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// HealthStatus reports provider reachability.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the uniform adapter interface over language model backends.
// A provider constructed without credentials stays usable: it serves
// deterministic demo responses instead of calling upstream.
type Provider interface {
	// Complete issues a synchronous chat completion.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// HealthCheck probes upstream reachability.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider identifier.
	Name() string
}
