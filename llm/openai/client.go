// Package openai implements the llm.Provider interface against the OpenAI
// chat completions API, including Azure-hosted deployments. Without an API
// key the client serves deterministic demo responses.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
)

const providerName = "openai"

var _ llm.Provider = (*Client)(nil)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client from configuration. An empty API key enables demo
// mode; no network calls are made in that state.
func New(cfg config.LLMConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "llm_openai")),
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return providerName }

// Demo reports whether the client runs without credentials.
func (c *Client) Demo() bool { return c.cfg.APIKey == "" }

type chatRequestBody struct {
	Model       string        `json:"model,omitempty"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponseBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	if c.Demo() {
		c.logger.Debug("serving demo completion", zap.String("model", model))
		return llm.DemoResponse(providerName, model, req), nil
	}

	body := chatRequestBody{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	if body.Temperature == 0 {
		body.Temperature = c.cfg.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode chat request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build chat request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.azure() {
		httpReq.Header.Set("api-key", c.cfg.APIKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.ErrUpstreamTimeout, "chat completion cancelled").
				WithCause(err).WithCollaborator(providerName).WithRetryable(true)
		}
		return nil, types.NewError(types.ErrUpstreamError, "chat completion request failed").
			WithCause(err).WithCollaborator(providerName).WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read chat response").
			WithCause(err).WithCollaborator(providerName)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapStatus(resp.StatusCode, raw)
	}

	var parsed chatResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode chat response").
			WithCause(err).WithCollaborator(providerName)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "chat response contained no choices").
			WithCollaborator(providerName)
	}

	content := parsed.Choices[0].Message.Content
	usage := llm.ChatUsage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	// Some compatible backends omit usage; estimate so metering stays honest.
	if usage.TotalTokens == 0 {
		usage.PromptTokens = llm.CountMessageTokens(model, req.Messages)
		usage.CompletionTokens = llm.CountTokens(model, content)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	c.logger.Debug("chat completion",
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_tokens", usage.TotalTokens),
	)

	return &llm.ChatResponse{
		Provider:  providerName,
		Model:     parsed.Model,
		Content:   content,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HealthCheck implements llm.Provider. Demo mode always reports healthy.
func (c *Client) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if c.Demo() {
		return &llm.HealthStatus{Healthy: true}, nil
	}

	start := time.Now()
	_, err := c.Complete(ctx, &llm.ChatRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	status := &llm.HealthStatus{
		Healthy: err == nil,
		Latency: time.Since(start),
	}
	return status, err
}

func (c *Client) azure() bool { return c.cfg.Deployment != "" }

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	if c.azure() {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			base, c.cfg.Deployment, c.cfg.APIVersion)
	}
	return base + "/v1/chat/completions"
}

func (c *Client) mapStatus(status int, raw []byte) error {
	msg := upstreamMessage(raw)

	var err *types.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		err = types.NewError(types.ErrAuthentication, msg)
	case status == http.StatusTooManyRequests:
		err = types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		err = types.NewError(types.ErrUpstreamTimeout, msg).WithRetryable(true)
	case status >= 500:
		err = types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		err = types.NewError(types.ErrInvalidRequest, msg)
	}
	return err.WithHTTPStatus(status).WithCollaborator(providerName)
}

func upstreamMessage(raw []byte) string {
	var parsed chatResponseBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "upstream returned an error"
}
