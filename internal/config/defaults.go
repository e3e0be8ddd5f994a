package config

const (
	defaultStagingDir           = "~/.local/share/loom/staging"
	defaultLibraryDir           = "~/.local/share/loom/library"
	defaultDataDir              = "~/.local/share/loom/data"
	defaultLogDir               = "~/.local/share/loom/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultDownloaderBinary     = "yt-dlp"
	defaultDownloadQuality      = "1080p"
	defaultDownloadTimeout      = 1800
	defaultTranscriptionBinary  = "whisper"
	defaultTranscriptionModel   = "base"
	defaultTranscriptionTimeout = 3600
	defaultAnalysisBaseURL      = "https://openrouter.ai/api/v1"
	defaultAnalysisModel        = "google/gemini-3-flash-preview"
	defaultAnalysisTimeout      = 120
	defaultCompressionMinTokens = 6000
	defaultCompressionMaxTokens = 3000
	defaultNotifyTimeout        = 10
	defaultPipelinePerMinute    = 2
	defaultPipelineBurst        = 2
	defaultToolPerMinute        = 10
	defaultToolBurst            = 10
	defaultBudgetTotal          = 10.0
	defaultRetryAttempts        = 3
	defaultRetryDelaySeconds    = 2.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Downloader: Downloader{
			Binary:         defaultDownloaderBinary,
			DefaultQuality: defaultDownloadQuality,
			TimeoutSeconds: defaultDownloadTimeout,
		},
		Transcription: Transcription{
			Binary:         defaultTranscriptionBinary,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Analysis: Analysis{
			BaseURL:              defaultAnalysisBaseURL,
			Model:                defaultAnalysisModel,
			TimeoutSeconds:       defaultAnalysisTimeout,
			CompressionMinTokens: defaultCompressionMinTokens,
			CompressionMaxTokens: defaultCompressionMaxTokens,
		},
		Upload: Upload{
			Enabled: false,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Runs:           true,
			Errors:         true,
		},
		Memory: Memory{
			GraphEnabled:     false,
			ContinualEnabled: false,
		},
		RateLimit: RateLimit{
			PipelinePerMinute: defaultPipelinePerMinute,
			PipelineBurst:     defaultPipelineBurst,
			ToolPerMinute:     defaultToolPerMinute,
			ToolBurst:         defaultToolBurst,
		},
		Budget: Budget{
			TotalLimit: defaultBudgetTotal,
		},
		Workflow: Workflow{
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
	}
}
