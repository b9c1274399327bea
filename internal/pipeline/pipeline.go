// Package pipeline orchestrates the three processing stages for a single
// job: text extraction, menu structuring, and image generation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"menuvision/internal/config"
	"menuvision/internal/logging"
	"menuvision/internal/menu"
	"menuvision/internal/queue"
	"menuvision/internal/services"
	"menuvision/internal/structuring"
)

// Store is the slice of the job store the orchestrator needs.
type Store interface {
	Update(ctx context.Context, job *queue.Job) error
}

// Extractor, Structurer, and ImageStage are the stage contracts the
// orchestrator sequences.
type Extractor interface {
	Run(ctx context.Context, imagePath string) (string, error)
}

type Structurer interface {
	Run(ctx context.Context, menuText string) (*structuring.Result, error)
}

type ImageStage interface {
	Run(ctx context.Context, jobID string, dishes []menu.Dish, onImage func(done, total int)) (int, error)
}

// Orchestrator runs one job through the stages under a wall-clock budget.
// Image generation is cut off once a configurable fraction of the budget has
// elapsed, so a slow batch degrades to placeholders instead of overrunning.
type Orchestrator struct {
	store     Store
	extract   Extractor
	structure Structurer
	images    ImageStage
	budget    time.Duration
	fraction  float64
	logger    *slog.Logger
}

// New assembles an orchestrator from pre-built stages.
func New(cfg *config.Config, store Store, extract Extractor, structure Structurer, images ImageStage, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:     store,
		extract:   extract,
		structure: structure,
		images:    images,
		budget:    time.Duration(cfg.Pipeline.DeadlineSeconds) * time.Second,
		fraction:  cfg.Pipeline.DeadlineFraction,
		logger:    logger,
	}
}

// Process runs the job to a terminal status and persists every transition.
// Stage failures are recorded on the job, not returned; the returned error
// reports persistence problems only.
func (o *Orchestrator) Process(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := o.logger.With(logging.String(logging.FieldJobID, job.ID))

	start := time.Now()
	deadline := start.Add(o.budget)
	logger.Info("processing job",
		logging.Duration("budget", o.budget),
		logging.Float64("generation_cutoff", o.fraction),
	)
	job.Status = queue.StatusProcessing
	job.StartedAt = &start
	job.Deadline = &deadline
	job.LastHeartbeat = &start
	job.SetProgress("extraction", "reading menu text")
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing status: %w", err)
	}

	// Stage work runs under the budget; persistence does not, so a job
	// that exhausts its budget can still record a terminal status.
	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	text, err := o.extract.Run(runCtx, job.ImagePath)
	if err != nil {
		return o.fail(ctx, job, logger, "extraction", err)
	}

	job.SetProgress("structuring", "identifying dishes")
	touchHeartbeat(job)
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist structuring progress: %w", err)
	}

	structured, err := o.structure.Run(runCtx, text)
	if err != nil {
		return o.fail(ctx, job, logger, "structuring", err)
	}

	job.Dishes = structured.Dishes
	if lang := structured.SourceLanguage; lang != "" {
		job.SourceLanguage = &lang
	}
	if len(job.Dishes) == 0 {
		logger.Info("menu contained no dishes")
		return o.finish(ctx, job, logger, 0)
	}

	job.SetProgress("generation", fmt.Sprintf("generating 0 of %d images", len(job.Dishes)))
	touchHeartbeat(job)
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist structured menu: %w", err)
	}

	// Image generation gets only the early share of the budget; the
	// remainder is reserved for finishing and persisting the job.
	genCtx, cancelGen := context.WithDeadline(runCtx, start.Add(o.softBudget()))
	defer cancelGen()

	var checkpointErr error
	generated, err := o.images.Run(genCtx, job.ID, job.Dishes, func(done, total int) {
		job.SetProgress("generation", fmt.Sprintf("generated %d of %d images", done, total))
		touchHeartbeat(job)
		if err := o.store.Update(ctx, job); err != nil && checkpointErr == nil {
			checkpointErr = err
		}
	})
	if err != nil {
		if services.IsFatalStage(err) {
			return o.fail(ctx, job, logger, "generation", err)
		}
		// Generation breakage never fails a structured job; the dishes
		// survive with placeholders.
		logger.Error("image generation stage broke", logging.Error(err))
		for i := range job.Dishes {
			if job.Dishes[i].ImageRef == nil {
				job.Dishes[i].SetPlaceholder()
			}
		}
	}
	if checkpointErr != nil {
		logger.Warn("progress checkpoint failed", logging.Error(checkpointErr))
	}

	return o.finish(ctx, job, logger, generated)
}

func (o *Orchestrator) softBudget() time.Duration {
	return time.Duration(float64(o.budget) * o.fraction)
}

// touchHeartbeat keeps the persisted liveness signal current: full-snapshot
// updates would otherwise write back the heartbeat captured at run start.
func touchHeartbeat(job *queue.Job) {
	now := time.Now()
	job.LastHeartbeat = &now
}

// finish computes the terminal status from the image counts and persists it
// exactly once.
func (o *Orchestrator) finish(ctx context.Context, job *queue.Job, logger *slog.Logger, generated int) error {
	total := len(job.Dishes)
	if generated == total {
		job.Status = queue.StatusCompleted
		job.ErrorMessage = ""
		job.SetProgress("completed", fmt.Sprintf("%d dishes, %d images", total, generated))
	} else {
		job.Status = queue.StatusPartial
		job.ErrorMessage = fmt.Sprintf("image generation incomplete: %d of %d dishes", generated, total)
		job.SetProgress("partial", job.ErrorMessage)
	}
	job.LastHeartbeat = nil
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist terminal status: %w", err)
	}
	logger.Info("job finished",
		logging.String("status", string(job.Status)),
		logging.Int(logging.FieldDishCount, total),
		logging.Int("images", generated))
	return nil
}

// fail marks the job failed with a message naming the stage that broke it.
func (o *Orchestrator) fail(ctx context.Context, job *queue.Job, logger *slog.Logger, stage string, cause error) error {
	job.SetFailed(fmt.Sprintf("%s failed: %v", stage, cause))
	logger.Error("job failed",
		logging.String(logging.FieldStage, stage),
		logging.Error(cause))
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist failed status: %w", err)
	}
	return nil
}
