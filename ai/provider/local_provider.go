package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/util"
)

// StatusError is a non-200 reply from the inference server
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference server returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// LocalProvider talks to an OpenAI-compatible chat completions endpoint
type LocalProvider struct {
	baseURL     string
	apiKey      string
	models      map[string]string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// LocalProviderConfig configures a LocalProvider
type LocalProviderConfig struct {
	BaseURL     string
	APIKey      string            // Sent as a bearer token when set
	Models      map[string]string // model config id -> concrete model name
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewLocalProvider creates a provider for local inference
func NewLocalProvider(cfg LocalProviderConfig) *LocalProvider {
	return &LocalProvider{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		models:      cfg.Models,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// ResolveModel maps a model config id to the concrete model name.
// Unknown ids are passed through as model names.
func (lp *LocalProvider) ResolveModel(id string) string {
	if name, ok := lp.models[id]; ok && name != "" {
		return name
	}
	return id
}

// Chat sends one prompt and returns the trimmed reply text
func (lp *LocalProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var messages []ChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.UserPrompt})

	reqBody := ChatCompletionRequest{
		Model:       lp.ResolveModel(req.Model),
		Messages:    messages,
		Stream:      false,
		Temperature: lp.temperature,
		MaxTokens:   lp.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	endpoint := lp.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if lp.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+lp.apiKey)
	}

	resp, err := lp.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "inference request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.WithStack(&StatusError{
			StatusCode: resp.StatusCode,
			Body:       util.TruncateRunes(strings.TrimSpace(string(body)), 500),
		})
	}

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", errors.Wrap(err, "failed to decode response")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.Newf("model %s returned an empty reply", reqBody.Model)
	}
	return content, nil
}
