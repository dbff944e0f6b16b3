package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
)

func testRequest() *llm.ChatRequest {
	return &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Qualify this lead"},
		},
	}
}

func TestDemoModeWithoutAPIKey(t *testing.T) {
	c := New(config.LLMConfig{Model: "gpt-4"}, zap.NewNop())

	require.True(t, c.Demo())
	resp, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.True(t, resp.Demo)
	assert.Contains(t, resp.Content, "[DEMO MODE]")
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4", body["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Score: 8.5"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 4,
				"total_tokens":      16,
			},
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "gpt-4",
	}, zap.NewNop())

	resp, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.False(t, resp.Demo)
	assert.Equal(t, "Score: 8.5", resp.Content)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestCompleteAzureEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt4-prod/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{
		APIKey:     "azure-key",
		BaseURL:    srv.URL,
		Deployment: "gpt4-prod",
		APIVersion: "2024-02-01",
		Model:      "gpt-4",
	}, zap.NewNop())

	resp, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	// Usage was absent upstream, so tokens are estimated.
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestCompleteErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, types.ErrAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, types.ErrRateLimited, true},
		{"server error", http.StatusInternalServerError, types.ErrUpstreamError, true},
		{"bad request", http.StatusBadRequest, types.ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "upstream says no"},
				})
			}))
			defer srv.Close()

			c := New(config.LLMConfig{APIKey: "sk", BaseURL: srv.URL, Model: "gpt-4"}, zap.NewNop())

			_, err := c.Complete(context.Background(), testRequest())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4", "choices": []any{}})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{APIKey: "sk", BaseURL: srv.URL, Model: "gpt-4"}, zap.NewNop())

	_, err := c.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestCompleteContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(config.LLMConfig{APIKey: "sk", BaseURL: srv.URL, Model: "gpt-4"}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamTimeout, types.GetErrorCode(err))
}

func TestHealthCheckDemo(t *testing.T) {
	c := New(config.LLMConfig{Model: "gpt-4"}, zap.NewNop())

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
