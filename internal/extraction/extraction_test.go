package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"menuvision/internal/services"
	"menuvision/internal/services/ocr"
)

type stubReader struct {
	text string
	err  error
	got  []byte
}

func (s *stubReader) ExtractText(_ context.Context, image []byte) (string, error) {
	s.got = image
	return s.text, s.err
}

func writeImage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.jpg")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestRunReturnsText(t *testing.T) {
	reader := &stubReader{text: "Pho Bo 45.000d"}
	stage := NewStage(reader, nil)

	text, err := stage.Run(context.Background(), writeImage(t, "jpeg-bytes"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "Pho Bo 45.000d" {
		t.Fatalf("unexpected text: %q", text)
	}
	if string(reader.got) != "jpeg-bytes" {
		t.Fatalf("reader received wrong bytes: %q", reader.got)
	}
}

func TestRunNoTextIsExtractionFailure(t *testing.T) {
	stage := NewStage(&stubReader{err: ocr.ErrNoText}, nil)

	_, err := stage.Run(context.Background(), writeImage(t, "blank"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "no text detected") {
		t.Fatalf("expected no-text message, got %v", err)
	}
}

func TestRunMissingImage(t *testing.T) {
	stage := NewStage(&stubReader{}, nil)

	_, err := stage.Run(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction marker, got %v", err)
	}
}

func TestRunReaderFailure(t *testing.T) {
	stage := NewStage(&stubReader{err: errors.New("boom")}, nil)

	_, err := stage.Run(context.Background(), writeImage(t, "img"))
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction marker, got %v", err)
	}
}
