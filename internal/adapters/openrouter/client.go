// Package openrouter provides a chat-completion adapter for OpenRouter-compatible APIs.
// It sends the system and user messages built by the core services and returns the
// raw message content of the first choice.
package openrouter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/animeterminal/internal/adapters/breaker"
	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "meta-llama/llama-3.1-8b-instruct:free"
	DefaultTitle   = "Anime Recommendation Terminal"
	DefaultTimeout = 45 * time.Second

	// PlaceholderKey is the sample value shipped in .env templates; it counts as unset.
	PlaceholderKey = "your_openrouter_api_key_here"

	breakerName = "completion"
	maxErrBody  = 512
)

// Config configures the client. Zero values select the defaults.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	Referer         string
	Title           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// KeyConfigured reports whether key is a usable credential.
func KeyConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderKey
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("openrouter: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("openrouter: unexpected status %d: %s", e.StatusCode, e.Body)
}

// RetryAfter returns the wait requested by the server, if any.
func (e *StatusError) RetryAfter() time.Duration {
	return e.retryAfter
}

type Client struct {
	baseURL    string
	model      string
	referer    string
	title      string
	configured bool
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
}

// compile-time interface assertion
var _ ports.CompletionClient = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient constructs a Client. Requests carry the API key as a bearer token.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.APIKey), TokenType: "Bearer"})
	return &Client{
		baseURL:    baseURL,
		model:      cfg.Model,
		referer:    cfg.Referer,
		title:      cfg.Title,
		configured: KeyConfigured(cfg.APIKey),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: http.DefaultTransport},
		},
		breaker: breaker.New[string](breaker.Settings{
			Name:     breakerName,
			Failures: cfg.BreakerFailures,
			Cooldown: cfg.BreakerCooldown,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.configured
}

// Complete sends one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if !c.configured {
		return "", errors.New("openrouter: api key not configured")
	}
	content, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	return content, err
}

func (c *Client) complete(ctx context.Context, in ports.CompletionRequest) (string, error) {
	payload := chatRequest{
		Model:            c.model,
		MaxTokens:        in.MaxTokens,
		Temperature:      in.Sampling.Temperature,
		TopP:             in.Sampling.TopP,
		FrequencyPenalty: in.Sampling.FrequencyPenalty,
		PresencePenalty:  in.Sampling.PresencePenalty,
	}
	for _, m := range in.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openrouter: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openrouter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	req.Header.Set("X-Title", c.title)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openrouter: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter: response has no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openrouter: empty response")
	}
	return content, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}
