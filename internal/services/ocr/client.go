// Package ocr wraps the text-detection API that reads menu photos.
package ocr

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
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20
)

// ErrNoText marks a successful OCR call that found no readable text in the
// image. Callers treat this differently from transport failures.
var ErrNoText = errors.New("no text detected")

// Config carries the settings required to reach the vision API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client extracts raw text from menu photos.
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
		return nil, services.Wrap(services.ErrConfiguration, "ocr", "new", "api key is required", nil)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ocr", "new", "base url is required", nil)
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

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractText submits the image bytes for text detection and returns the
// detected text. It returns ErrNoText when the API succeeds but finds
// nothing readable.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "image is empty", nil)
	}
	payload := annotateRequest{
		Requests: []annotateEntry{{
			Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []annotateFeature{{Type: "TEXT_DETECTION"}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "send request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncateBody(data)), nil)
	}

	var parsed annotateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "decode response", err)
	}
	if len(parsed.Responses) == 0 {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "response contained no results", nil)
	}
	result := parsed.Responses[0]
	if result.Error != nil && result.Error.Message != "" {
		return "", services.Wrap(services.ErrExtraction, "ocr", "extract", "api error: "+result.Error.Message, nil)
	}
	text := strings.TrimSpace(result.FullTextAnnotation.Text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func truncateBody(data []byte) string {
	const limit = 512
	body := strings.TrimSpace(string(data))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
