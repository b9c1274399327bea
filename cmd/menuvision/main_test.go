package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[ocr]
api_key = "test"

[llm]
api_key = "test"

[imagegen]
api_key = "test"
`, filepath.Join(dir, "data"), filepath.Join(dir, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, server, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", configPath}
	if server != "" {
		flags = append(flags, "--server", server)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIJobsListRendersTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"jobs":[
			{"id":"11111111-aaaa","status":"completed","dishes":[{"original_name":"Pho"}],"progress_stage":"completed","created_at":"2026-08-01T12:00:00Z","updated_at":"2026-08-01T12:05:00Z"},
			{"id":"22222222-bbbb","status":"failed","dishes":[],"error_message":"extraction failed","created_at":"2026-08-01T11:00:00Z","updated_at":"2026-08-01T11:01:00Z"}
		]}`))
	}))
	defer server.Close()

	out, _, err := runCLI(t, []string{"jobs", "list"}, server.URL, writeTestConfig(t))
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	if !strings.Contains(out, "11111111") || !strings.Contains(out, "completed") {
		t.Fatalf("unexpected list output: %q", out)
	}
	if !strings.Contains(out, "failed") {
		t.Fatalf("list output missing failed job: %q", out)
	}

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "failed"}, server.URL, writeTestConfig(t))
	if err != nil {
		t.Fatalf("jobs list --status failed: %v", err)
	}
	if strings.Contains(out, "11111111") || !strings.Contains(out, "22222222") {
		t.Fatalf("status filter not applied: %q", out)
	}

	_, _, err = runCLI(t, []string{"jobs", "list", "--status", "done"}, server.URL, writeTestConfig(t))
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestCLIJobsStatusRendersDishes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"abc","status":"partial","source_language":"vi","error_message":"image generation incomplete: 1 of 2 dishes","dishes":[
			{"original_name":"Pho Bo","translated_name":"Beef Noodle Soup","price":"45.000d","image_ref":"/data/jobs/abc/dish_0.png"},
			{"original_name":"Goi Cuon","image_ref":"placeholder://no-image"}
		]}`))
	}))
	defer server.Close()

	out, _, err := runCLI(t, []string{"jobs", "status", "abc"}, server.URL, writeTestConfig(t))
	if err != nil {
		t.Fatalf("jobs status: %v", err)
	}
	for _, want := range []string{"partial", "Vietnamese", "Pho Bo", "Beef Noodle Soup", "(placeholder)", "incomplete"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q: %s", want, out)
		}
	}
}

func TestCLIStatusCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uptime_seconds":61,"jobs":{"total":5,"pending":1,"processing":1,"completed":2,"partial":0,"failed":1}}`))
	}))
	defer server.Close()

	out, _, err := runCLI(t, []string{"status"}, server.URL, writeTestConfig(t))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "1m1s") {
		t.Fatalf("status output missing uptime: %q", out)
	}
	if !strings.Contains(out, "Pending") || !strings.Contains(out, "5") {
		t.Fatalf("status output missing counts: %q", out)
	}
}

func TestCLIConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	// A second init without --overwrite must refuse.
	cmd = newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for existing config")
	}
}

func TestCLIProcessRejectsNonImage(t *testing.T) {
	configPath := writeTestConfig(t)
	notImage := filepath.Join(t.TempDir(), "menu.txt")
	if err := os.WriteFile(notImage, []byte("just text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, _, err := runCLI(t, []string{"process", notImage}, "", configPath)
	if err == nil || !strings.Contains(err.Error(), "not a JPEG") {
		t.Fatalf("expected image type error, got %v", err)
	}
}
