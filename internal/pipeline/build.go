package pipeline

import (
	"log/slog"
	"time"

	"menuvision/internal/config"
	"menuvision/internal/extraction"
	"menuvision/internal/generation"
	"menuvision/internal/services/imagegen"
	"menuvision/internal/services/llm"
	"menuvision/internal/services/ocr"
	"menuvision/internal/structuring"
)

// Build constructs an orchestrator with live service clients from the
// configuration.
func Build(cfg *config.Config, store Store, logger *slog.Logger) (*Orchestrator, error) {
	ocrClient, err := ocr.New(ocr.Config{
		APIKey:         cfg.OCR.APIKey,
		BaseURL:        cfg.OCR.BaseURL,
		TimeoutSeconds: cfg.OCR.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}
	llmClient, err := llm.New(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}
	imageClient, err := imagegen.New(imagegen.Config{
		APIKey:         cfg.ImageGen.APIKey,
		BaseURL:        cfg.ImageGen.BaseURL,
		Model:          cfg.ImageGen.Model,
		TimeoutSeconds: cfg.ImageGen.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	imageStage, err := generation.NewStage(imageClient, cfg.JobsDir(), generation.PoolConfig{
		Width:     cfg.Pipeline.GenerationWorkers,
		Attempts:  cfg.Pipeline.GenerationAttempts,
		BaseDelay: time.Duration(cfg.Pipeline.GenerationRetryBaseMS) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.Pipeline.GenerationRetryMaxMS) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, err
	}

	return New(cfg, store,
		extraction.NewStage(ocrClient, logger),
		structuring.NewStage(llmClient, logger),
		imageStage,
		logger,
	), nil
}
