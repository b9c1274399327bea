package config

const (
	defaultDataDir = "~/.local/share/menuvision"
	defaultLogDir  = "~/.local/share/menuvision/logs"
	defaultAPIBind = "127.0.0.1:7917"

	defaultOCRBaseURL        = "https://vision.googleapis.com/v1/images:annotate"
	defaultOCRTimeoutSeconds = 30

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "anthropic/claude-3.5-haiku"
	defaultLLMTimeoutSeconds = 60

	defaultImageGenBaseURL        = "https://api.stability.ai/v2beta/stable-image/generate/core"
	defaultImageGenModel          = "stable-image-core"
	defaultImageGenTimeoutSeconds = 90

	defaultDeadlineSeconds       = 900
	defaultDeadlineFraction      = 0.8
	defaultGenerationWorkers     = 10
	defaultGenerationAttempts    = 3
	defaultGenerationRetryBaseMS = 1000
	defaultGenerationRetryMaxMS  = 10000
	defaultMaxImageMB            = 8

	defaultJobPollInterval    = 2
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		OCR: OCR{
			BaseURL:        defaultOCRBaseURL,
			TimeoutSeconds: defaultOCRTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		ImageGen: ImageGen{
			BaseURL:        defaultImageGenBaseURL,
			Model:          defaultImageGenModel,
			TimeoutSeconds: defaultImageGenTimeoutSeconds,
		},
		Pipeline: Pipeline{
			DeadlineSeconds:       defaultDeadlineSeconds,
			DeadlineFraction:      defaultDeadlineFraction,
			GenerationWorkers:     defaultGenerationWorkers,
			GenerationAttempts:    defaultGenerationAttempts,
			GenerationRetryBaseMS: defaultGenerationRetryBaseMS,
			GenerationRetryMaxMS:  defaultGenerationRetryMaxMS,
			MaxImageMB:            defaultMaxImageMB,
		},
		Workflow: Workflow{
			JobPollInterval:    defaultJobPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
