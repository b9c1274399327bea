package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.DeadlineSeconds <= 0 {
		return errors.New("pipeline.deadline_seconds must be positive")
	}
	if c.Pipeline.DeadlineFraction <= 0 || c.Pipeline.DeadlineFraction > 1 {
		return errors.New("pipeline.deadline_fraction must be in (0, 1]")
	}
	if c.Pipeline.GenerationWorkers < 1 {
		return errors.New("pipeline.generation_workers must be at least 1")
	}
	if c.Pipeline.GenerationAttempts < 1 {
		return errors.New("pipeline.generation_attempts must be at least 1")
	}
	if c.Pipeline.GenerationRetryMaxMS < c.Pipeline.GenerationRetryBaseMS {
		return errors.New("pipeline.generation_retry_max_ms must be >= pipeline.generation_retry_base_ms")
	}
	if c.Pipeline.MaxImageMB < 1 {
		return errors.New("pipeline.max_image_mb must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.JobPollInterval <= 0 {
		return errors.New("workflow.job_poll_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
