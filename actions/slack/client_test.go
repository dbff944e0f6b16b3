package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.SlackConfig{BotToken: "xoxb-test", DefaultChannel: "#leads"}, zap.NewNop())
	c.baseURL = srv.URL
	return c, srv
}

func TestDegradedPostMessage(t *testing.T) {
	c := New(config.SlackConfig{DefaultChannel: "#leads"}, zap.NewNop())
	require.True(t, c.Degraded())

	ts, err := c.PostMessage(context.Background(), "#leads", "new lead")
	require.NoError(t, err)
	assert.Equal(t, "1234567890.123456", ts)
}

func TestDegradedListChannels(t *testing.T) {
	c := New(config.SlackConfig{}, zap.NewNop())

	channels, err := c.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
	assert.Equal(t, "marketing", channels[1].Name)
}

func TestPostMessage(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "#leads", body["channel"])
		assert.Equal(t, "new lead scored 8.5", body["text"])

		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "111.222"})
	}))

	ts, err := c.PostMessage(context.Background(), "#leads", "new lead scored 8.5")
	require.NoError(t, err)
	assert.Equal(t, "111.222", ts)
}

func TestPostMessageAPIError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Slack reports failures with HTTP 200 and ok=false.
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))

	_, err := c.PostMessage(context.Background(), "#ghost", "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestPostMessageAuthError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
	}))

	_, err := c.PostMessage(context.Background(), "#leads", "hello")
	require.Error(t, err)
	assert.Equal(t, types.ErrAuthentication, types.GetErrorCode(err))
}

func TestUpdateMessage(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.update", r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "111.222", body["ts"])
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "111.222"})
	}))

	ts, err := c.UpdateMessage(context.Background(), "#leads", "111.222", "edited")
	require.NoError(t, err)
	assert.Equal(t, "111.222", ts)
}

func TestPostNotificationFormatting(t *testing.T) {
	var gotText string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotText = body["text"].(string)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.2"})
	}))

	_, err := c.PostNotification(context.Background(), "#leads", "New Lead", "ACME scored 8.5")
	require.NoError(t, err)
	assert.Equal(t, "🔔 *New Lead*\nACME scored 8.5", gotText)
}

func TestListChannels(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations.list", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"channels": []map[string]any{
				{"id": "C1", "name": "general"},
			},
		})
	}))

	channels, err := c.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "C1", channels[0].ID)
}

func TestServerError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.PostMessage(context.Background(), "#leads", "hello")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}
