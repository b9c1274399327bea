package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitSendsMultipart(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/jobs" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		file.Close()
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"abc","status":"pending"}`))
	}))
	defer server.Close()

	imagePath := filepath.Join(t.TempDir(), "menu.jpg")
	if err := os.WriteFile(imagePath, []byte{0xff, 0xd8, 0xff}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	c := New(server.URL, "token-123")
	job, err := c.Submit(context.Background(), imagePath)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.ID != "abc" || job.Status != "pending" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestDoSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"job not found"}`))
	}))
	defer server.Close()

	c := New(server.URL, "")
	_, err := c.Job(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestWaitForTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"id":"abc","status":"processing"}`))
			return
		}
		w.Write([]byte(`{"id":"abc","status":"partial"}`))
	}))
	defer server.Close()

	c := New(server.URL, "")
	job, err := c.WaitForTerminal(context.Background(), "abc", time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForTerminal: %v", err)
	}
	if job.Status != "partial" {
		t.Fatalf("status = %q", job.Status)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 polls, got %d", calls.Load())
	}
}
