package pipeline

// Run status values for RunResult.Status.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// RunResult is the top-level output of one pipeline invocation. It is
// additive: later phases only add fields, never remove or overwrite what an
// earlier phase recorded.
type RunResult struct {
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status"`

	// Step and Error identify the failure locus when Status is "error".
	Step  string `json:"step,omitempty"`
	Error string `json:"error,omitempty"`

	// StatusCode carries the conventional transport mapping for rate-limit
	// rejections (429); zero otherwise.
	StatusCode        int  `json:"status_code,omitempty"`
	RateLimitExceeded bool `json:"rate_limit_exceeded,omitempty"`

	DurationMS int64 `json:"duration_ms"`

	Download      *Result `json:"download,omitempty"`
	Transcription *Result `json:"transcription,omitempty"`
	Upload        *Result `json:"upload,omitempty"`
	Analysis      *Result `json:"analysis,omitempty"`
	Fallacies     *Result `json:"fallacies,omitempty"`
	Perspectives  *Result `json:"perspectives,omitempty"`
	Memory        *Result `json:"memory,omitempty"`
	Notification  *Result `json:"notification,omitempty"`

	// Warnings records non-terminal failures (graph/continual memory).
	Warnings []string `json:"warnings,omitempty"`
}

// MediaInfo is the download phase's contribution consumed by every later
// phase.
type MediaInfo struct {
	SourceURL   string
	VideoID     string
	Title       string
	Platform    string
	LocalPath   string
	Description string
}

func mediaFromResult(download Result, sourceURL string) MediaInfo {
	return MediaInfo{
		SourceURL:   sourceURL,
		VideoID:     download.String(KeyVideoID),
		Title:       download.String(KeyTitle),
		Platform:    download.String(KeyPlatform),
		LocalPath:   download.String(KeyLocalPath),
		Description: download.String(KeyDescription),
	}
}
