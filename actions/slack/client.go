// Package slack posts workflow notifications to Slack channels. Without a
// bot token the client runs in degraded mode and returns a fixed placeholder
// timestamp so callers can proceed.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

const (
	collaborator = "slack"
	apiBaseURL   = "https://slack.com/api"

	placeholderTimestamp = "1234567890.123456"
)

// Channel is one Slack channel visible to the bot.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a Slack Web API client.
type Client struct {
	cfg        config.SlackConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Slack client from configuration.
func New(cfg config.SlackConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "slack_client")),
	}
}

// Degraded reports whether the client runs without a bot token.
func (c *Client) Degraded() bool { return !c.cfg.Configured() }

// DefaultChannel returns the configured notification channel.
func (c *Client) DefaultChannel() string { return c.cfg.DefaultChannel }

// PostMessage sends text to a channel and returns the message timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, text string) (string, error) {
	if c.Degraded() {
		c.logger.Warn("Slack bot token not set, returning placeholder timestamp",
			zap.String("channel", channel))
		return placeholderTimestamp, nil
	}

	resp, err := c.call(ctx, "chat.postMessage", map[string]any{
		"channel": channel,
		"text":    text,
	})
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

// UpdateMessage replaces the text of an existing message.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string) (string, error) {
	if c.Degraded() {
		return ts, nil
	}

	resp, err := c.call(ctx, "chat.update", map[string]any{
		"channel": channel,
		"ts":      ts,
		"text":    text,
	})
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

// PostNotification sends a title/body message formatted for alerts.
func (c *Client) PostNotification(ctx context.Context, channel, title, message string) (string, error) {
	return c.PostMessage(ctx, channel, fmt.Sprintf("🔔 *%s*\n%s", title, message))
}

// ListChannels returns channels the bot can see.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	if c.Degraded() {
		return []Channel{
			{ID: "C1234567890", Name: "general"},
			{ID: "C0987654321", Name: "marketing"},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/conversations.list?types=public_channel,private_channel", nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build channel list request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr("channel list failed", err)
	}
	defer httpResp.Body.Close()

	var parsed struct {
		OK       bool      `json:"ok"`
		Error    string    `json:"error"`
		Channels []Channel `json:"channels"`
	}
	if err := decode(httpResp, &parsed); err != nil {
		return nil, err
	}
	if !parsed.OK {
		return nil, apiErr(parsed.Error)
	}
	return parsed.Channels, nil
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode "+method+" payload").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build "+method+" request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(method+" request failed", err)
	}
	defer httpResp.Body.Close()

	var parsed apiResponse
	if err := decode(httpResp, &parsed); err != nil {
		return nil, err
	}
	// Slack reports failures with 200 and ok=false.
	if !parsed.OK {
		return nil, apiErr(parsed.Error)
	}

	c.logger.Debug("Slack message sent",
		zap.String("method", method),
		zap.String("ts", parsed.TS),
	)
	return &parsed, nil
}

func decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transportErr("failed to read Slack response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.NewError(types.ErrUpstreamError, "Slack returned an unexpected status").
			WithHTTPStatus(resp.StatusCode).WithCollaborator(collaborator).
			WithRetryable(resp.StatusCode >= 500)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewError(types.ErrUpstreamError, "failed to decode Slack response").
			WithCause(err).WithCollaborator(collaborator)
	}
	return nil
}

func apiErr(code string) error {
	if code == "" {
		code = "unknown_error"
	}
	errCode := types.ErrUpstreamError
	switch code {
	case "invalid_auth", "not_authed", "token_revoked":
		errCode = types.ErrAuthentication
	case "channel_not_found":
		errCode = types.ErrNotFound
	case "ratelimited", "rate_limited":
		errCode = types.ErrRateLimited
	}
	return types.NewError(errCode, "Slack API error: "+code).WithCollaborator(collaborator)
}

func transportErr(msg string, cause error) error {
	return types.NewError(types.ErrUpstreamError, msg).
		WithCause(cause).WithCollaborator(collaborator).WithRetryable(true)
}
