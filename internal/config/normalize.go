package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOCR()
	c.normalizeLLM()
	c.normalizeImageGen()
	c.normalizePipeline()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeOCR() {
	if c.OCR.APIKey == "" {
		if value, ok := os.LookupEnv("MENUVISION_OCR_API_KEY"); ok {
			c.OCR.APIKey = value
		}
	}
	c.OCR.BaseURL = strings.TrimSpace(c.OCR.BaseURL)
	if c.OCR.BaseURL == "" {
		c.OCR.BaseURL = defaultOCRBaseURL
	}
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = defaultOCRTimeoutSeconds
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("MENUVISION_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImageGen() {
	if c.ImageGen.APIKey == "" {
		if value, ok := os.LookupEnv("MENUVISION_IMAGEGEN_API_KEY"); ok {
			c.ImageGen.APIKey = value
		}
	}
	c.ImageGen.BaseURL = strings.TrimSpace(c.ImageGen.BaseURL)
	if c.ImageGen.BaseURL == "" {
		c.ImageGen.BaseURL = defaultImageGenBaseURL
	}
	c.ImageGen.Model = strings.TrimSpace(c.ImageGen.Model)
	if c.ImageGen.Model == "" {
		c.ImageGen.Model = defaultImageGenModel
	}
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.DeadlineSeconds <= 0 {
		c.Pipeline.DeadlineSeconds = defaultDeadlineSeconds
	}
	if c.Pipeline.DeadlineFraction <= 0 {
		c.Pipeline.DeadlineFraction = defaultDeadlineFraction
	}
	if c.Pipeline.GenerationWorkers <= 0 {
		c.Pipeline.GenerationWorkers = defaultGenerationWorkers
	}
	if c.Pipeline.GenerationAttempts <= 0 {
		c.Pipeline.GenerationAttempts = defaultGenerationAttempts
	}
	if c.Pipeline.GenerationRetryBaseMS <= 0 {
		c.Pipeline.GenerationRetryBaseMS = defaultGenerationRetryBaseMS
	}
	if c.Pipeline.GenerationRetryMaxMS <= 0 {
		c.Pipeline.GenerationRetryMaxMS = defaultGenerationRetryMaxMS
	}
	if c.Pipeline.MaxImageMB <= 0 {
		c.Pipeline.MaxImageMB = defaultMaxImageMB
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.JobPollInterval <= 0 {
		c.Workflow.JobPollInterval = defaultJobPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
