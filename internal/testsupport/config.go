// Package testsupport provides per-test configuration and store helpers.
package testsupport

import (
	"path/filepath"
	"testing"

	"menuvision/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.OCR.APIKey = "test"
	cfg.LLM.APIKey = "test"
	cfg.ImageGen.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithGenerationWorkers overrides the worker-pool width on the test config.
func WithGenerationWorkers(workers int) ConfigOption {
	return func(c *config.Config) {
		c.Pipeline.GenerationWorkers = workers
	}
}

// WithDeadline overrides the job time budget on the test config.
func WithDeadline(seconds int, fraction float64) ConfigOption {
	return func(c *config.Config) {
		c.Pipeline.DeadlineSeconds = seconds
		c.Pipeline.DeadlineFraction = fraction
	}
}
