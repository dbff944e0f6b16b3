package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.TwitterConfig{BearerToken: "AAAA"}, zap.NewNop())
	c.baseURL = srv.URL
	return c
}

func TestDegradedPostTweet(t *testing.T) {
	c := New(config.TwitterConfig{}, zap.NewNop())
	require.True(t, c.Degraded())

	tweet, err := c.PostTweet(context.Background(), "launch day!", "")
	require.NoError(t, err)
	assert.Equal(t, "1234567890", tweet.ID)
	assert.Equal(t, "launch day!", tweet.Text)
	assert.Equal(t, "https://twitter.com/demo/status/1234567890", tweet.URL)
}

func TestDegradedSearchTweets(t *testing.T) {
	c := New(config.TwitterConfig{}, zap.NewNop())

	tweets, err := c.SearchTweets(context.Background(), "agentmesh", 10)
	require.NoError(t, err)
	require.Len(t, tweets, 1)
	assert.Equal(t, "1111111111", tweets[0].ID)
	assert.Equal(t, "Mock tweet matching 'agentmesh'", tweets[0].Text)
	assert.Equal(t, "demo_user", tweets[0].AuthorID)
}

func TestTruncate(t *testing.T) {
	short := "fits fine"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("x", 300)
	got := Truncate(long)
	assert.Len(t, got, 280)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("x", 277), got[:277])
}

func TestPostTweet(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets", r.URL.Path)
		assert.Equal(t, "Bearer AAAA", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "launch day!", body["text"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "42", "text": "launch day!"},
		})
	}))

	tweet, err := c.PostTweet(context.Background(), "launch day!", "")
	require.NoError(t, err)
	assert.Equal(t, "42", tweet.ID)
	assert.Equal(t, "https://twitter.com/i/web/status/42", tweet.URL)
}

func TestPostTweetReply(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		reply := body["reply"].(map[string]any)
		assert.Equal(t, "7", reply["in_reply_to_tweet_id"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "43", "text": "thanks!"},
		})
	}))

	_, err := c.PostTweet(context.Background(), "thanks!", "7")
	require.NoError(t, err)
}

func TestPostTweetTruncatesBeforeSending(t *testing.T) {
	var sent string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		sent = body["text"].(string)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "44", "text": sent},
		})
	}))

	_, err := c.PostTweet(context.Background(), strings.Repeat("y", 400), "")
	require.NoError(t, err)
	assert.Len(t, sent, 280)
}

func TestPostTweetRateLimited(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.PostTweet(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestSearchTweets(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tweets/search/recent", r.URL.Path)
		assert.Equal(t, "agentmesh", r.URL.Query().Get("query"))
		assert.Equal(t, "10", r.URL.Query().Get("max_results"))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "1", "text": "loving agentmesh", "author_id": "u1"},
			},
		})
	}))

	tweets, err := c.SearchTweets(context.Background(), "agentmesh", 0)
	require.NoError(t, err)
	require.Len(t, tweets, 1)
	assert.Equal(t, "loving agentmesh", tweets[0].Text)
}

func TestSearchMentionsQuery(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"acme" OR @acme`, r.URL.Query().Get("query"))
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))

	_, err := c.SearchMentions(context.Background(), "acme")
	require.NoError(t, err)
}
