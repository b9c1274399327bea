// Package client is the HTTP client the CLI uses to talk to a running
// daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"menuvision/internal/menu"
)

const defaultTimeout = 30 * time.Second

// Job mirrors the daemon's job representation.
type Job struct {
	ID              string      `json:"id"`
	Status          string      `json:"status"`
	SourceLanguage  *string     `json:"source_language"`
	Dishes          []menu.Dish `json:"dishes"`
	ErrorMessage    string      `json:"error_message"`
	ProgressStage   string      `json:"progress_stage"`
	ProgressMessage string      `json:"progress_message"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Status mirrors the daemon's health summary.
type Status struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Jobs          struct {
		Total      int `json:"total"`
		Pending    int `json:"pending"`
		Processing int `json:"processing"`
		Completed  int `json:"completed"`
		Partial    int `json:"partial"`
		Failed     int `json:"failed"`
	} `json:"jobs"`
}

// Client talks to one daemon instance.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client for the daemon at baseURL, e.g. "http://127.0.0.1:7917".
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Submit uploads a menu photo and returns the created job.
func (c *Client) Submit(ctx context.Context, imagePath string) (*Job, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var job Job
	if err := c.do(req, http.StatusAccepted, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Job fetches one job by id.
func (c *Client) Job(ctx context.Context, id string) (*Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+id, nil)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := c.do(req, http.StatusOK, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Jobs lists every job, newest first.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(req, http.StatusOK, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// Status fetches the daemon health summary.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	var status Status
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForTerminal polls a job until it reaches a terminal status or the
// context ends.
func (c *Client) WaitForTerminal(ctx context.Context, id string, pollInterval time.Duration) (*Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case "completed", "partial", "failed":
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, wantStatus int, dst any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(body, dst)
}
