// Package twitter posts and searches tweets through the Twitter/X v2 API.
// Without a bearer token the client runs in degraded mode and returns fixed
// placeholder tweets.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

const (
	collaborator = "twitter"
	apiBaseURL   = "https://api.twitter.com/2"

	// Tweets are truncated to maxTweetLen; longer drafts are cut to
	// truncateAt and suffixed with an ellipsis.
	maxTweetLen = 280
	truncateAt  = 277

	placeholderTweetID  = "1234567890"
	placeholderTweetURL = "https://twitter.com/demo/status/1234567890"
	placeholderSearchID = "1111111111"
)

// Tweet is one posted or found tweet.
type Tweet struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AuthorID string `json:"author_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Client is a Twitter v2 API client.
type Client struct {
	cfg        config.TwitterConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Twitter client from configuration.
func New(cfg config.TwitterConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "twitter_client")),
	}
}

// Degraded reports whether the client runs without a bearer token.
func (c *Client) Degraded() bool { return !c.cfg.Configured() }

// Truncate enforces the platform length limit on a draft tweet.
func Truncate(text string) string {
	if len(text) > maxTweetLen {
		return text[:truncateAt] + "..."
	}
	return text
}

// PostTweet publishes text, optionally as a reply, and returns the tweet.
func (c *Client) PostTweet(ctx context.Context, text, replyTo string) (*Tweet, error) {
	if c.Degraded() {
		c.logger.Warn("Twitter bearer token not set, returning placeholder tweet")
		capped := text
		if len(capped) > maxTweetLen {
			capped = capped[:maxTweetLen]
		}
		return &Tweet{
			ID:   placeholderTweetID,
			Text: capped,
			URL:  placeholderTweetURL,
		}, nil
	}

	text = Truncate(text)
	payload := map[string]any{"text": text}
	if replyTo != "" {
		payload["reply"] = map[string]any{"in_reply_to_tweet_id": replyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode tweet").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build tweet request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr("tweet request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportErr("failed to read tweet response", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, statusErr(resp.StatusCode, "tweet rejected")
	}

	var parsed struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode tweet response").
			WithCause(err).WithCollaborator(collaborator)
	}

	c.logger.Info("tweet posted", zap.String("tweet_id", parsed.Data.ID))

	return &Tweet{
		ID:   parsed.Data.ID,
		Text: text,
		URL:  "https://twitter.com/i/web/status/" + parsed.Data.ID,
	}, nil
}

// SearchTweets returns recent tweets matching query, capped at maxResults
// (upstream limit 100).
func (c *Client) SearchTweets(ctx context.Context, query string, maxResults int) ([]Tweet, error) {
	if c.Degraded() {
		c.logger.Warn("Twitter bearer token not set, returning placeholder search result")
		return []Tweet{{
			ID:       placeholderSearchID,
			Text:     fmt.Sprintf("Mock tweet matching '%s'", query),
			AuthorID: "demo_user",
		}}, nil
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", "author_id,created_at,public_metrics")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/tweets/search/recent?"+params.Encode(), nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build search request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr("tweet search failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportErr("failed to read search response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(resp.StatusCode, "tweet search rejected")
	}

	var parsed struct {
		Data []Tweet `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode search response").
			WithCause(err).WithCollaborator(collaborator)
	}
	return parsed.Data, nil
}

// SearchMentions finds recent tweets mentioning a brand by name or handle.
func (c *Client) SearchMentions(ctx context.Context, brand string) ([]Tweet, error) {
	query := fmt.Sprintf("%q OR @%s", brand, brand)
	return c.SearchTweets(ctx, query, 10)
}

func statusErr(status int, msg string) error {
	code := types.ErrUpstreamError
	retryable := status >= 500
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrAuthentication
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	}
	return types.NewError(code, msg).
		WithHTTPStatus(status).WithCollaborator(collaborator).WithRetryable(retryable)
}

func transportErr(msg string, cause error) error {
	return types.NewError(types.ErrUpstreamError, msg).
		WithCause(cause).WithCollaborator(collaborator).WithRetryable(true)
}
