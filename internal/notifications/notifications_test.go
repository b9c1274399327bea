package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"menuvision/internal/menu"
	"menuvision/internal/queue"
	"menuvision/internal/testsupport"
)

type captured struct {
	title string
	tags  string
	body  string
}

func newTestService(t *testing.T, completion, errors bool) (*Service, *[]captured) {
	t.Helper()
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title: r.Header.Get("Title"),
			tags:  r.Header.Get("Tags"),
			body:  string(body),
		})
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = completion
	cfg.Notifications.Errors = errors
	return New(cfg, nil), &got
}

func completedJob() *queue.Job {
	job := &queue.Job{ID: "0123456789abcdef", Status: queue.StatusCompleted}
	dish := menu.Dish{OriginalName: "Pho"}
	dish.SetImageRef("/img.png")
	job.Dishes = []menu.Dish{dish}
	return job
}

func TestJobFinishedCompleted(t *testing.T) {
	service, got := newTestService(t, true, true)
	service.JobFinished(context.Background(), completedJob())
	if len(*got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(*got))
	}
	n := (*got)[0]
	if n.title != "Menu processed" {
		t.Fatalf("title = %q", n.title)
	}
	if !strings.Contains(n.body, "01234567") || !strings.Contains(n.body, "1 dishes") {
		t.Fatalf("body = %q", n.body)
	}
}

func TestJobFinishedFailedRespectsToggle(t *testing.T) {
	service, got := newTestService(t, true, false)
	job := &queue.Job{ID: "deadbeef", Status: queue.StatusFailed, ErrorMessage: "extraction failed"}
	service.JobFinished(context.Background(), job)
	if len(*got) != 0 {
		t.Fatalf("errors toggle off must suppress notification, got %d", len(*got))
	}
}

func TestJobFinishedPartial(t *testing.T) {
	service, got := newTestService(t, true, true)
	job := completedJob()
	job.Status = queue.StatusPartial
	var placeholder menu.Dish
	placeholder.OriginalName = "Goi Cuon"
	placeholder.SetPlaceholder()
	job.Dishes = append(job.Dishes, placeholder)
	service.JobFinished(context.Background(), job)
	if len(*got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(*got))
	}
	if !strings.Contains((*got)[0].body, "1 placeholders") {
		t.Fatalf("body = %q", (*got)[0].body)
	}
}

func TestUnconfiguredServiceIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	service := New(cfg, nil)
	if service.Enabled() {
		t.Fatal("service without topic must be disabled")
	}
	// Must not panic or dial anything.
	service.JobFinished(context.Background(), completedJob())
}
