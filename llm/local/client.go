// Package local implements the llm.Provider interface against an Ollama
// server. Chat messages are flattened into a single prompt because the
// generate endpoint takes free-form text.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
)

const providerName = "local"

var _ llm.Provider = (*Client)(nil)

// Client calls a local Ollama server.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client from configuration. An empty BaseURL enables demo
// mode.
func New(cfg config.LLMConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "llm_local")),
	}
}

// Name implements llm.Provider.
func (c *Client) Name() string { return providerName }

// Demo reports whether the client runs without a configured server.
func (c *Client) Demo() bool { return c.cfg.BaseURL == "" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
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

	body := generateRequest{
		Model:  model,
		Prompt: flatten(req.Messages),
		Stream: false,
	}
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode generate request").WithCause(err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build generate request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrProviderUnavailable, "local model server unreachable").
			WithCause(err).WithCollaborator(providerName).WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to read generate response").
			WithCause(err).WithCollaborator(providerName)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode generate response").
			WithCause(err).WithCollaborator(providerName)
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != "" {
		msg := parsed.Error
		if msg == "" {
			msg = "local model server returned an error"
		}
		return nil, types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(resp.StatusCode).WithCollaborator(providerName).
			WithRetryable(resp.StatusCode >= 500)
	}

	usage := llm.ChatUsage{
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
	}
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		usage.PromptTokens = llm.CountMessageTokens(model, req.Messages)
		usage.CompletionTokens = llm.CountTokens(model, parsed.Response)
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &llm.ChatResponse{
		Provider:  providerName,
		Model:     parsed.Model,
		Content:   parsed.Response,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HealthCheck implements llm.Provider by listing installed models.
func (c *Client) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if c.Demo() {
		return &llm.HealthStatus{Healthy: true}, nil
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/tags"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build health request").WithCause(err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start)},
			types.NewError(types.ErrProviderUnavailable, "local model server unreachable").
				WithCause(err).WithCollaborator(providerName).WithRetryable(true)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return &llm.HealthStatus{
		Healthy: resp.StatusCode == http.StatusOK,
		Latency: time.Since(start),
	}, nil
}

// flatten renders chat messages as a single prompt ending with an assistant
// cue.
func flatten(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			b.WriteString("System: ")
		case llm.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant: ")
	return b.String()
}
