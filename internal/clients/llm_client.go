package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/quantlab/pkg/retrier"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxAttempts = 1
	defaultRetryDelay  = 2 * time.Second
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

var (
	// ErrEmptyAPIKey returned before any request when no key is configured.
	ErrEmptyAPIKey = errors.New("LLM API key is empty")
	// ErrEmptyResponse returned when the API answers without usable text.
	ErrEmptyResponse = errors.New("LLM API returned an empty response")
)

// LLMClient sends a single-turn chat completion.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// StatusError non-2xx answer from the LLM API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM API returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuth reports whether the API rejected the credentials.
func (e *StatusError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// OpenAICompatibleClient talks to any chat-completions endpoint speaking the OpenAI wire format,
// including the Gemini OpenAI-compatible endpoint.
type OpenAICompatibleClient struct {
	apiURL      string
	apiKey      string
	model       string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	temperature float64
	maxTokens   int
}

// Option defines a function to configure the client.
type Option func(*OpenAICompatibleClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *OpenAICompatibleClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a transient failure is attempted in total.
func WithMaxAttempts(n int) Option {
	return func(c *OpenAICompatibleClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause before the first retry; later pauses back off exponentially.
func WithRetryDelay(d time.Duration) Option {
	return func(c *OpenAICompatibleClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAICompatibleClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewOpenAICompatibleClient creates a new client for OpenAI-compatible APIs.
func NewOpenAICompatibleClient(apiURL, apiKey, model string, opts ...Option) *OpenAICompatibleClient {
	c := &OpenAICompatibleClient{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Complete sends the system and user messages and returns the first choice's text.
// Only transport failures and 5xx answers are retried.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.apiKey == "" {
		return "", ErrEmptyAPIKey
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	retry := retrier.New(
		retrier.WithMaxAttempts(c.maxAttempts),
		retrier.WithInitialInterval(c.retryDelay),
		retrier.WithRetryIf(retryable),
	)

	return retrier.DoWithData(retry, ctx, func(ctx context.Context) (string, error) {
		return c.sendRequest(ctx, reqBody)
	})
}

func (c *OpenAICompatibleClient) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.Wrap(err, "failed to create HTTP request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResponse) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}
