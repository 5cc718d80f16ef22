// Package provider defines the contract between the engine and a chat
// completion backend.
package provider

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is sent to a provider.
type Request struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
	Stop        []string  `json:"stop,omitempty"`
}

// NewRequest builds a system+user request.
func NewRequest(system, user string, maxTokens int, temperature float64) *Request {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return &Request{Messages: msgs, MaxTokens: maxTokens, Temperature: temperature}
}

// Usage reports token counts for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is what a provider returns.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Provider generates chat completions.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GetModel returns the model name requests are sent to.
	GetModel() string

	// GetTimeout returns the per-request timeout.
	GetTimeout() time.Duration

	Close() error
}

// Config configures a provider.
type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	BaseURL    string
	Referer    string
	Title      string
}
