// Package openrouter talks to the OpenRouter chat completions API.
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"allergen-engine/internal/core/ai/provider"
	"allergen-engine/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultTimeout = 60 * time.Second

	// error bodies longer than this are cut in logs
	maxLoggedBody = 512
)

// chatRequest is the wire body of /chat/completions.
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature"`
	Stop        []string           `json:"stop,omitempty"`
}

type chatResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []choice       `json:"choices"`
	Usage   provider.Usage `json:"usage"`
}

type choice struct {
	Message      provider.Message `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// apiError is the error body OpenRouter returns.
type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// Client implements provider.Provider on resty.
type Client struct {
	http *resty.Client
	cfg  provider.Config
}

var _ provider.Provider = (*Client)(nil)

// NewClient creates an OpenRouter client. Empty fields fall back to defaults.
func NewClient(cfg provider.Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &Client{http: client, cfg: cfg}
}

// Generate sends req and returns the first choice.
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}

	common.LogDebug("sending request to OpenRouter",
		zap.String("model", body.Model),
		zap.Int("messages", len(body.Messages)),
		zap.Int("max_tokens", body.MaxTokens),
	)

	var out chatResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = truncate(resp.String(), maxLoggedBody)
		}
		common.LogError("OpenRouter returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", body.Model),
			zap.String("response", truncate(resp.String(), maxLoggedBody)),
		)
		return nil, fmt.Errorf("OpenRouter error (status %d): %s", resp.StatusCode(), msg)
	}

	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no choices in OpenRouter response")
	}
	content := out.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty content in OpenRouter response")
	}

	model := out.Model
	if model == "" {
		model = body.Model
	}
	return &provider.Response{Content: content, Model: model, Usage: out.Usage}, nil
}

// GetModel returns the configured model.
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// GetTimeout returns the per-request timeout.
func (c *Client) GetTimeout() time.Duration {
	return c.cfg.Timeout
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
