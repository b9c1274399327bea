package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"menuvision/internal/services"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	cfg := Config{APIKey: "test-key", BaseURL: baseURL, Model: "test-model"}
	opts = append(opts, WithSleeper(func(context.Context, time.Duration) error { return nil }))
	client, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func chatBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Write([]byte(chatBody(`{"dishes":[]}`)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"dishes":[]}` {
		t.Fatalf("unexpected content: %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestCompleteJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(chatBody("ok")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != "ok" {
		t.Fatalf("unexpected content: %q", content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.IsTransient(err) {
		t.Fatalf("400 should not be transient: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

func TestCompleteJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithMaxAttempts(3))
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestCompleteJSONRejectsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody("   ")))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty-content error, got %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://x", Model: "m"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := New(Config{APIKey: "k", Model: "m"}); err == nil {
		t.Fatal("expected error for missing base url")
	}
	if _, err := New(Config{APIKey: "k", BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestDecodeJSONStripsCodeFences(t *testing.T) {
	cases := []string{
		`{"dishes":[{"original_name":"Pho"}]}`,
		"```json\n{\"dishes\":[{\"original_name\":\"Pho\"}]}\n```",
		"```\n{\"dishes\":[{\"original_name\":\"Pho\"}]}\n```",
		"  {\"dishes\":[{\"original_name\":\"Pho\"}]}  ",
	}
	for _, input := range cases {
		var parsed struct {
			Dishes []struct {
				OriginalName string `json:"original_name"`
			} `json:"dishes"`
		}
		if err := DecodeJSON(input, &parsed); err != nil {
			t.Fatalf("DecodeJSON(%q): %v", input, err)
		}
		if len(parsed.Dishes) != 1 || parsed.Dishes[0].OriginalName != "Pho" {
			t.Fatalf("unexpected parse result for %q: %+v", input, parsed)
		}
	}
}

func TestDecodeJSONRecoversTruncatedOutput(t *testing.T) {
	type payload struct {
		SourceLanguage string `json:"source_language"`
		Dishes         []struct {
			OriginalName string `json:"original_name"`
		} `json:"dishes"`
	}

	// The model ran out of tokens midway through the third dish; the two
	// complete dishes survive.
	truncated := `{"source_language":"vi","dishes":[` +
		`{"original_name":"Pho Bo"},` +
		`{"original_name":"Goi Cuon"},` +
		`{"original_name":"Banh`
	var parsed payload
	if err := DecodeJSON(truncated, &parsed); err != nil {
		t.Fatalf("DecodeJSON truncated: %v", err)
	}
	if len(parsed.Dishes) != 2 {
		t.Fatalf("expected 2 recovered dishes, got %d", len(parsed.Dishes))
	}
	if parsed.Dishes[1].OriginalName != "Goi Cuon" || parsed.SourceLanguage != "vi" {
		t.Fatalf("recovered payload mangled: %+v", parsed)
	}

	// A bare array cut off after a trailing comma recovers the same way.
	var entries []struct {
		OriginalName string `json:"original_name"`
	}
	if err := DecodeJSON(`[{"original_name":"Pho"},`, &entries); err != nil {
		t.Fatalf("DecodeJSON bare array: %v", err)
	}
	if len(entries) != 1 || entries[0].OriginalName != "Pho" {
		t.Fatalf("unexpected bare-array recovery: %+v", entries)
	}

	// Nothing salvageable before the cut: the original parse error stands.
	if err := DecodeJSON(`{"source_language":"vi","dishes":[{"original_`, &parsed); err == nil {
		t.Fatal("expected error when no complete dish exists")
	}

	// Well-formed JSON that simply has the wrong shape is not truncation.
	var wrongShape []string
	if err := DecodeJSON(`{"dishes":[]}`, &wrongShape); err == nil {
		t.Fatal("expected type error to surface unrecovered")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("5"); got != 5*time.Second {
		t.Fatalf("parseRetryAfter(5) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("parseRetryAfter empty = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Fatalf("parseRetryAfter garbage = %v", got)
	}
}
