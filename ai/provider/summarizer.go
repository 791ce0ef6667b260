package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
)

const (
	summaryPrompt = "Summarize the following news article in 3-5 sentences, focusing on the key facts, context, " +
		"and implications. Avoid speculation and opinion.\n\n%s\n\nSummary:"

	broadcastPrompt = "You are a professional news anchor. Create a coherent news broadcast script based on the following article summaries. " +
		"Weave them together into a flowing narrative, grouping related topics and keeping it informative and neutral:\n\n%s\n\nBroadcast:"
)

// ChatClient sends a single prompt to a model
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// SummarizerConfig configures retries and request pacing
type SummarizerConfig struct {
	MaxRetries        int           // Total attempts per prompt (default 3)
	RetryBase         time.Duration // First retry delay, doubled per attempt (default 1s)
	RetryMaxDelay     time.Duration // Default 15s
	RequestsPerMinute int           // 0 = unlimited
}

// Summarizer implements digest.Summarizer and digest.BroadcastGenerator
type Summarizer struct {
	client  ChatClient
	cfg     SummarizerConfig
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
	sleep   func(ctx context.Context, d time.Duration) error
}

var (
	_ digest.Summarizer         = (*Summarizer)(nil)
	_ digest.BroadcastGenerator = (*Summarizer)(nil)
)

// NewSummarizer creates a summarizer over client
func NewSummarizer(client ChatClient, cfg SummarizerConfig, log *zap.SugaredLogger) *Summarizer {
	if log == nil {
		log = logger.Logger
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Summarizer{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
		logger:  log.Named("llm"),
		sleep:   sleepContext,
	}
}

// Summarize condenses one article's text with the job's summary model
func (s *Summarizer) Summarize(ctx context.Context, text string, params digest.RunParams) (string, error) {
	return s.chat(ctx, "summarize", ChatRequest{
		Model:      params.SummaryModel,
		UserPrompt: fmt.Sprintf(summaryPrompt, text),
	})
}

// GenerateBroadcast writes one anchor script from the summaries, grouped
// by source feed
func (s *Summarizer) GenerateBroadcast(ctx context.Context, summaries []digest.Summary, params digest.RunParams) (string, error) {
	return s.chat(ctx, "broadcast", ChatRequest{
		Model:      params.BroadcastModel,
		UserPrompt: fmt.Sprintf(broadcastPrompt, digest.FormatForBroadcast(summaries)),
	})
}

func (s *Summarizer) chat(ctx context.Context, op string, req ChatRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", errors.Wrap(err, "rate limiter")
		}

		start := time.Now()
		out, err := s.client.Chat(ctx, req)
		if err == nil {
			s.logger.Debugw("LLM call complete",
				"op", op,
				logger.FieldModel, req.Model,
				logger.FieldDurationMS, time.Since(start).Milliseconds())
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == s.cfg.MaxRetries {
			break
		}

		delay := s.backoffDelay(attempt)
		s.logger.Warnw("LLM call failed, retrying",
			"op", op,
			logger.FieldModel, req.Model,
			"attempt", attempt,
			"delay", delay,
			logger.FieldError, err)
		if err := s.sleep(ctx, delay); err != nil {
			return "", errors.Wrap(err, "retry cancelled")
		}
	}
	return "", errors.Wrapf(lastErr, "%s with model %s", op, req.Model)
}

// backoffDelay doubles from RetryBase, capped at RetryMaxDelay.
// retry starts at 1 (first retry).
func (s *Summarizer) backoffDelay(retry int) time.Duration {
	d := s.cfg.RetryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= s.cfg.RetryMaxDelay {
			return s.cfg.RetryMaxDelay
		}
	}
	return d
}

// retryable is false only for client errors the server will repeat
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
