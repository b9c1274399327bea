// Package imagegen wraps the image-generation API that renders dish photos.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"menuvision/internal/services"
)

const (
	defaultTimeout   = 90 * time.Second
	maxResponseBytes = 32 << 20
)

// Config carries the settings required to reach the image API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client renders a single dish image per request. It performs no retries of
// its own; callers decide retry policy based on services.IsTransient.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// New validates the configuration and returns a ready client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "imagegen", "new", "api key is required", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "imagegen", "new", "base url is required", nil)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "imagegen", "new", "model is required", nil)
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type generateRequest struct {
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	OutputFormat string `json:"output_format"`
}

type generateResponse struct {
	Images []string `json:"images"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate renders a PNG for the given prompt and returns the image bytes.
// Throttling, server errors, and transport timeouts come back wrapped as
// transient so the caller can retry; everything else is permanent.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "prompt is empty", nil)
	}
	payload := generateRequest{
		Model:        c.cfg.Model,
		Prompt:       prompt,
		OutputFormat: "png",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(errors.Join(services.ErrGeneration, services.ErrTransient), "imagegen", "generate", "send request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(errors.Join(services.ErrGeneration, services.ErrTransient), "imagegen", "generate", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrGeneration
		if retryableStatus(resp.StatusCode) {
			marker = errors.Join(services.ErrGeneration, services.ErrTransient)
		}
		return nil, services.Wrap(marker, "imagegen", "generate", fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncateBody(data)), nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "decode response", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "api error: "+parsed.Error.Message, nil)
	}
	if len(parsed.Images) == 0 {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "response contained no images", nil)
	}
	image, err := base64.StdEncoding.DecodeString(parsed.Images[0])
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "decode image payload", err)
	}
	if len(image) == 0 {
		return nil, services.Wrap(services.ErrGeneration, "imagegen", "generate", "image payload was empty", nil)
	}
	return image, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

func truncateBody(data []byte) string {
	const limit = 512
	body := strings.TrimSpace(string(data))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
