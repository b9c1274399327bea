package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtraction marks failures of the text-extraction stage. Fatal to the job.
	ErrExtraction = errors.New("extraction error")
	// ErrStructuring marks failures of the menu-structuring stage. Fatal to the job.
	ErrStructuring = errors.New("structuring error")
	// ErrGeneration marks per-dish image generation failures. Never fatal to the job.
	ErrGeneration = errors.New("generation error")
	// ErrTransient marks failures that may succeed on retry (throttling, 5xx, timeouts).
	ErrTransient = errors.New("transient failure")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err carries the transient marker anywhere in its chain.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatalStage reports whether err represents a stage failure that ends the job.
func IsFatalStage(err error) bool {
	return errors.Is(err, ErrExtraction) || errors.Is(err, ErrStructuring)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
