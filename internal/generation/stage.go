package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"menuvision/internal/fileutil"
	"menuvision/internal/logging"
	"menuvision/internal/menu"
	"menuvision/internal/services"
)

// Generator is the slice of the image client the stage needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Stage renders one image per dish and records the results directly on the
// dish list. Individual failures leave a placeholder reference; the stage
// itself only fails on misconfiguration.
type Stage struct {
	pool    *Pool
	jobsDir string
	logger  *slog.Logger
}

// NewStage builds the generation stage. Images are written beneath jobsDir
// in a per-job directory.
func NewStage(generator Generator, jobsDir string, poolCfg PoolConfig, logger *slog.Logger) (*Stage, error) {
	if generator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generation", "new stage", "generator is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pool, err := NewPool(poolCfg, generator.Generate)
	if err != nil {
		return nil, err
	}
	return &Stage{pool: pool, jobsDir: jobsDir, logger: logger}, nil
}

// Run generates an image for every dish in place and reports how many
// succeeded. Dishes whose generation failed or was cut off by cancellation
// get the placeholder reference. onImage, when non-nil, is invoked after
// each dish settles so callers can checkpoint progress.
func (s *Stage) Run(ctx context.Context, jobID string, dishes []menu.Dish, onImage func(done, total int)) (int, error) {
	ctx = services.WithStage(ctx, "generation")
	if len(dishes) == 0 {
		return 0, nil
	}

	jobDir := filepath.Join(s.jobsDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "generation", "prepare", "create job directory", err)
	}

	prompts := make([]string, len(dishes))
	for i, dish := range dishes {
		prompts[i] = BuildPrompt(dish)
	}

	logger := logging.WithContext(services.WithJobID(ctx, jobID), s.logger)
	generated := 0
	done := 0
	s.pool.Run(ctx, prompts, func(idx int, outcome Outcome) {
		done++
		if s.resolveDish(logger, jobDir, dishes, idx, outcome) {
			generated++
		}
		if onImage != nil {
			onImage(done, len(dishes))
		}
	})
	return generated, nil
}

// resolveDish writes the image for one settled pool item and stamps the dish
// with its reference, or the placeholder when the item failed.
func (s *Stage) resolveDish(logger *slog.Logger, jobDir string, dishes []menu.Dish, idx int, outcome Outcome) bool {
	if outcome.Err != nil {
		dishes[idx].SetPlaceholder()
		logger.Warn("dish image failed",
			logging.Int(logging.FieldDishIndex, idx),
			logging.Int("attempts", outcome.Attempts),
			logging.Error(outcome.Err))
		return false
	}
	imagePath := filepath.Join(jobDir, fmt.Sprintf("dish_%d.png", idx))
	if err := fileutil.WriteFileAtomic(imagePath, outcome.Image, 0o644); err != nil {
		dishes[idx].SetPlaceholder()
		logger.Warn("dish image write failed",
			logging.Int(logging.FieldDishIndex, idx),
			logging.Error(err))
		return false
	}
	dishes[idx].SetImageRef(imagePath)
	logger.Info("dish image generated",
		logging.Int(logging.FieldDishIndex, idx),
		logging.Int("attempts", outcome.Attempts))
	return true
}
