package local

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
)

func TestDemoModeWithoutBaseURL(t *testing.T) {
	c := New(config.LLMConfig{Model: "llama3"}, zap.NewNop())

	require.True(t, c.Demo())
	resp, err := c.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Demo)
	assert.Contains(t, resp.Content, "[DEMO MODE]")
}

func TestCompleteFlattensMessages(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		gotPrompt = body["prompt"].(string)
		assert.Equal(t, false, body["stream"])

		json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3",
			"response":          "Score: 6",
			"prompt_eval_count": 20,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{BaseURL: srv.URL, Model: "llama3"}, zap.NewNop())

	resp, err := c.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You score leads."},
			{Role: llm.RoleUser, Content: "ACME wants 500 seats"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Score: 6", resp.Content)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
	assert.True(t, strings.HasPrefix(gotPrompt, "System: You score leads.\n"))
	assert.Contains(t, gotPrompt, "Human: ACME wants 500 seats\n")
	assert.True(t, strings.HasSuffix(gotPrompt, "Assistant: "))
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{BaseURL: srv.URL, Model: "missing"}, zap.NewNop())

	_, err := c.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "model not found")
}

func TestCompleteServerUnreachable(t *testing.T) {
	c := New(config.LLMConfig{BaseURL: "http://127.0.0.1:1", Model: "llama3"}, zap.NewNop())

	_, err := c.Complete(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer srv.Close()

	c := New(config.LLMConfig{BaseURL: srv.URL, Model: "llama3"}, zap.NewNop())

	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestHealthCheckUnreachable(t *testing.T) {
	c := New(config.LLMConfig{BaseURL: "http://127.0.0.1:1", Model: "llama3"}, zap.NewNop())

	status, err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
