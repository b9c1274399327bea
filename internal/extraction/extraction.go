// Package extraction runs the first pipeline stage: reading raw text out of
// a menu photo.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"menuvision/internal/logging"
	"menuvision/internal/services"
	"menuvision/internal/services/ocr"
)

// TextReader is the slice of the OCR client the stage needs.
type TextReader interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Stage extracts menu text from an image on disk.
type Stage struct {
	reader TextReader
	logger *slog.Logger
}

// NewStage builds the extraction stage.
func NewStage(reader TextReader, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{reader: reader, logger: logger}
}

// Run reads the image at imagePath and returns the detected menu text. Any
// failure, including an image with no readable text, is fatal to the job.
func (s *Stage) Run(ctx context.Context, imagePath string) (string, error) {
	ctx = services.WithStage(ctx, "extraction")
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extraction", "read image", "read menu photo", err)
	}

	text, err := s.reader.ExtractText(ctx, image)
	if err != nil {
		if errors.Is(err, ocr.ErrNoText) {
			return "", services.Wrap(services.ErrExtraction, "extraction", "detect text", "no text detected in image", err)
		}
		return "", services.Wrap(services.ErrExtraction, "extraction", "detect text", "text detection failed", err)
	}

	logging.WithContext(ctx, s.logger).Info("menu text extracted",
		logging.Int("characters", len(text)))
	return text, nil
}
