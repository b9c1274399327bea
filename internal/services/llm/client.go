package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"menuvision/internal/services"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultMaxAttempts  = 4
	defaultRetryBackoff = 2 * time.Second
	maxResponseBytes    = 4 << 20
)

// Config carries the settings required to reach the chat-completion API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client issues chat-completion requests and decodes JSON payloads from the
// model output.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	maxAttempts  int
	retryBackoff time.Duration
	sleep        func(context.Context, time.Duration) error
}

// Option adjusts client construction, primarily for tests.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxAttempts bounds how many times a single completion is attempted.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithRetryBackoff sets the base delay between retried attempts.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(c *Client) {
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// WithSleeper replaces the retry sleep function so tests can skip real delays.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New validates the configuration and returns a ready client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", "api key is required", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", "base url is required", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new", "model is required", nil)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: timeout},
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
		sleep:        sleepWithContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteJSON sends a system/user prompt pair and returns the raw message
// content, retrying transient transport failures with exponential backoff.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "encode request", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		content, err := c.doRequest(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !services.IsTransient(err) || attempt == c.maxAttempts {
			return "", err
		}
		delay := c.retryDelay(attempt, err)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(errors.Join(services.ErrStructuring, services.ErrTransient), "llm", "complete", "send request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", services.Wrap(errors.Join(services.ErrStructuring, services.ErrTransient), "llm", "complete", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncateBody(data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		marker := services.ErrStructuring
		if retryableStatus(resp.StatusCode) {
			marker = errors.Join(services.ErrStructuring, services.ErrTransient)
		}
		return "", services.Wrap(marker, "llm", "complete", fmt.Sprintf("unexpected status %d", resp.StatusCode), statusErr)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "decode response", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "api error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "response contained no choices", nil)
	}
	choice := parsed.Choices[0]
	if choice.Message.Refusal != "" {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "model refused: "+choice.Message.Refusal, nil)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", services.Wrap(services.ErrStructuring, "llm", "complete", "response content was empty", nil)
	}
	return content, nil
}

func (c *Client) retryDelay(attempt int, err error) time.Duration {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter
	}
	return time.Duration(float64(c.retryBackoff) * math.Pow(2, float64(attempt-1)))
}

// HealthCheck verifies the configured endpoint is reachable with the
// provided credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.CompleteJSON(ctx, "You are a health check.", "Reply with the word ok.")
	return err
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

func truncateBody(data []byte) string {
	const limit = 512
	body := strings.TrimSpace(string(data))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
