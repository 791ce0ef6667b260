// Package provider generates article summaries and broadcast scripts with
// an OpenAI-compatible inference server (Ollama, LocalAI, ...).
package provider

import (
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/am"
)

// NewFromConfig builds the provider and summarizer for cfg.LLM
func NewFromConfig(cfg *am.Config, log *zap.SugaredLogger) (*LocalProvider, *Summarizer) {
	lp := NewLocalProvider(LocalProviderConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Models:      cfg.LLM.Models,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	})

	s := NewSummarizer(lp, SummarizerConfig{
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, log)
	return lp, s
}
