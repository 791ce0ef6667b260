package provider

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/am"
	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
)

type scriptedClient struct {
	mu       sync.Mutex
	requests []ChatRequest
	replies  []error
	out      string
}

func (c *scriptedClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.replies) > 0 {
		err := c.replies[0]
		c.replies = c.replies[1:]
		if err != nil {
			return "", err
		}
	}
	return c.out, nil
}

func newTestSummarizer(client ChatClient) (*Summarizer, *[]time.Duration) {
	s := NewSummarizer(client, SummarizerConfig{RetryBase: time.Second, RetryMaxDelay: 3 * time.Second}, zap.NewNop().Sugar())
	var delays []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return s, &delays
}

func TestSummarize_Prompt(t *testing.T) {
	client := &scriptedClient{out: "Short summary."}
	s, _ := newTestSummarizer(client)

	out, err := s.Summarize(context.Background(), "Article body.", digest.RunParams{SummaryModel: "default_model"})
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", out)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "default_model", req.Model)
	assert.Empty(t, req.SystemPrompt)
	assert.True(t, strings.HasPrefix(req.UserPrompt, "Summarize the following news article in 3-5 sentences"))
	assert.True(t, strings.HasSuffix(req.UserPrompt, "\n\nArticle body.\n\nSummary:"))
}

func TestGenerateBroadcast_GroupsByFeed(t *testing.T) {
	client := &scriptedClient{out: "Good evening."}
	s, _ := newTestSummarizer(client)

	summaries := []digest.Summary{
		{Article: digest.Article{Title: "A", SourceFeed: "https://example.com/tech.xml"}, Text: "alpha"},
		{Article: digest.Article{Title: "B", SourceFeed: "https://example.com/world.rss"}, Text: "beta"},
	}
	out, err := s.GenerateBroadcast(context.Background(), summaries, digest.RunParams{BroadcastModel: "broadcast_model"})
	require.NoError(t, err)
	assert.Equal(t, "Good evening.", out)

	req := client.requests[0]
	assert.Equal(t, "broadcast_model", req.Model)
	assert.True(t, strings.HasPrefix(req.UserPrompt, "You are a professional news anchor."))
	assert.Contains(t, req.UserPrompt, digest.FormatForBroadcast(summaries))
	assert.True(t, strings.HasSuffix(req.UserPrompt, "\n\nBroadcast:"))
}

func TestChatRetries(t *testing.T) {
	t.Run("transient failures then success", func(t *testing.T) {
		client := &scriptedClient{
			replies: []error{errors.New("connection reset"), &StatusError{StatusCode: http.StatusServiceUnavailable}},
			out:     "ok",
		}
		s, delays := newTestSummarizer(client)

		out, err := s.Summarize(context.Background(), "x", digest.RunParams{SummaryModel: "m"})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Len(t, client.requests, 3)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		boom := errors.New("boom")
		client := &scriptedClient{replies: []error{boom, boom, boom, boom}}
		s, delays := newTestSummarizer(client)

		_, err := s.Summarize(context.Background(), "x", digest.RunParams{SummaryModel: "m"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))
		assert.Len(t, client.requests, 3)
		assert.Len(t, *delays, 2)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		client := &scriptedClient{replies: []error{&StatusError{StatusCode: http.StatusBadRequest}}}
		s, delays := newTestSummarizer(client)

		_, err := s.Summarize(context.Background(), "x", digest.RunParams{SummaryModel: "m"})
		require.Error(t, err)
		assert.Len(t, client.requests, 1)
		assert.Empty(t, *delays)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &scriptedClient{out: "never"}
		s, _ := newTestSummarizer(client)

		_, err := s.Summarize(ctx, "x", digest.RunParams{SummaryModel: "m"})
		require.Error(t, err)
		assert.Empty(t, client.requests)
	})
}

func TestBackoffDelayCapped(t *testing.T) {
	s, _ := newTestSummarizer(&scriptedClient{})

	assert.Equal(t, time.Second, s.backoffDelay(1))
	assert.Equal(t, 2*time.Second, s.backoffDelay(2))
	assert.Equal(t, 3*time.Second, s.backoffDelay(3))
	assert.Equal(t, 3*time.Second, s.backoffDelay(10))
}

func TestNewFromConfig(t *testing.T) {
	var got ChatCompletionRequest
	srv := completionServer(t, func(req ChatCompletionRequest) (int, string) {
		got = req
		return http.StatusOK, "summary"
	})

	cfg := &am.Config{LLM: am.LLMConfig{
		BaseURL:        srv.URL,
		Models:         map[string]string{"default_model": "llama3.2:3b"},
		TimeoutSeconds: 5,
		MaxRetries:     2,
	}}
	lp, s := NewFromConfig(cfg, zap.NewNop().Sugar())
	assert.Equal(t, "llama3.2:3b", lp.ResolveModel("default_model"))

	out, err := s.Summarize(context.Background(), "text", digest.RunParams{SummaryModel: "default_model"})
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.Equal(t, "llama3.2:3b", got.Model)
}
