package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aitownlabs/aitown/testing/assert"
	"github.com/aitownlabs/aitown/testing/require"
)

func testClient(t *testing.T, srv *httptest.Server, opts ...ClientOpt) *Client {
	opts = append([]ClientOpt{
		WithAPIKey("sk-test"),
		WithBackoffSchedule([]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}),
		WithRateLimit(10000, 10000),
	}, opts...)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func chatCompletion(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + string(mustMarshal(content)) + `},"finish_reason":"stop"}]}`
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := NewClient("")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClient_ReadsEnvKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-from-env")
	c, err := NewClient("127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", c.NodeURL())
	assert.Equal(t, "sk-from-env", c.apiKey)
}

func TestNewClient_MalformedHost(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-test")
	_, err := NewClient("portless")
	require.ErrorContains(t, "hostname must include port", err)
}

func TestNewClient_URLHost(t *testing.T) {
	t.Setenv(APIKeyEnv, "sk-test")
	c, err := NewClient("https://inference.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://inference.example.com", c.NodeURL())
}

func TestClient_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, err := w.Write([]byte(chatCompletion("ok")))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", auth)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	statuses := []int{http.StatusInternalServerError, http.StatusTooManyRequests}
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= len(statuses) {
			http.Error(w, "busy", statuses[attempts-1])
			return
		}
		_, err := w.Write([]byte(chatCompletion("finally")))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	reply, err := c.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "finally", reply)
	assert.Equal(t, 3, attempts)
}

func TestClient_FatalStatusDoesNotRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorContains(t, "bad request", err)
	assert.Equal(t, 1, attempts)
}

func TestClient_RetriesExhausted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, ErrRetriable)
	// One initial attempt plus one per schedule entry.
	assert.Equal(t, 4, attempts)
}

func TestClient_ContextCancelsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv, WithBackoffSchedule([]time.Duration{time.Hour}))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Chat(ctx, ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestModerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, moderationsPath, r.URL.Path)
		_, err := w.Write([]byte(`{"results":[{"flagged":true}]}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	flagged, err := c.Moderate(context.Background(), "rude text")
	require.NoError(t, err)
	assert.Equal(t, true, flagged)
}
