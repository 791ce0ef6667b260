package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliewerdaniel/News02/errors"
)

func completionServer(t *testing.T, handle func(req ChatCompletionRequest) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, reply := handle(req)
		w.WriteHeader(status)
		if status == http.StatusOK {
			fmt.Fprintf(w, `{"id":"1","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, req.Model, reply)
			return
		}
		fmt.Fprint(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(url string) *LocalProvider {
	return NewLocalProvider(LocalProviderConfig{
		BaseURL:     url + "/",
		Models:      map[string]string{"default_model": "llama3.2:3b", "broadcast_model": "mistral:7b"},
		Temperature: 0.7,
		MaxTokens:   512,
		Timeout:     5 * time.Second,
	})
}

func TestResolveModel(t *testing.T) {
	lp := newTestProvider("http://localhost:11434")

	assert.Equal(t, "llama3.2:3b", lp.ResolveModel("default_model"))
	assert.Equal(t, "mistral:7b", lp.ResolveModel("broadcast_model"))
	assert.Equal(t, "qwen2:7b", lp.ResolveModel("qwen2:7b"))
}

func TestChat_SendsOpenAICompatibleRequest(t *testing.T) {
	var got ChatCompletionRequest
	srv := completionServer(t, func(req ChatCompletionRequest) (int, string) {
		got = req
		return http.StatusOK, "  a reply \n"
	})

	lp := newTestProvider(srv.URL)
	out, err := lp.Chat(context.Background(), ChatRequest{Model: "broadcast_model", UserPrompt: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "a reply", out)
	assert.Equal(t, "mistral:7b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 512, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestChat_SystemPromptAndAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	lp := NewLocalProvider(LocalProviderConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second})
	_, err := lp.Chat(context.Background(), ChatRequest{Model: "m", SystemPrompt: "be brief", UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
}

func TestChat_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := completionServer(t, func(ChatCompletionRequest) (int, string) {
			return http.StatusNotFound, `{"error":"model not found"}`
		})
		_, err := newTestProvider(srv.URL).Chat(context.Background(), ChatRequest{Model: "x", UserPrompt: "p"})
		require.Error(t, err)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.False(t, statusErr.Retryable())
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("empty reply", func(t *testing.T) {
		srv := completionServer(t, func(ChatCompletionRequest) (int, string) { return http.StatusOK, "   " })
		_, err := newTestProvider(srv.URL).Chat(context.Background(), ChatRequest{Model: "x", UserPrompt: "p"})
		assert.ErrorContains(t, err, "empty reply")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		}))
		defer srv.Close()
		_, err := newTestProvider(srv.URL).Chat(context.Background(), ChatRequest{Model: "x", UserPrompt: "p"})
		assert.ErrorContains(t, err, "no completion choices")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := newTestProvider("http://127.0.0.1:1").Chat(context.Background(), ChatRequest{Model: "x", UserPrompt: "p"})
		assert.Error(t, err)
	})
}

func TestStatusError_Retryable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 503}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 400}).Retryable())
}
