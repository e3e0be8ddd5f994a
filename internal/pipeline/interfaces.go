package pipeline

import "context"

// Collaborator contracts consumed by the orchestrator. Every contract
// returns a Result; expected conditions (disabled features, rate limits)
// are tagged Results, never errors. Handles are read-shared across
// concurrently running steps and must tolerate concurrent use.

// Downloader fetches a media URL into the staging area.
type Downloader interface {
	Run(ctx context.Context, url, quality string) Result
}

// Transcriber produces a transcript from a local media file. An unavailable
// engine must surface an error message matching the engine-unavailable
// signature so the orchestrator can attempt the degraded fallback.
type Transcriber interface {
	Run(ctx context.Context, localPath string) Result
}

// ProviderTranscripts fetches a provider-supplied transcript. Best effort:
// used only on the fallback path; an empty transcript with nil error means
// none was available.
type ProviderTranscripts interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Uploader archives the downloaded media. A disabled uploader returns a
// skip Result, not a failure.
type Uploader interface {
	Run(ctx context.Context, localPath, platform string) Result
}

// Analyzer extracts sentiment, keywords, and claims from a transcript.
type Analyzer interface {
	Run(ctx context.Context, text string) Result
}

// FallacyDetector flags logical fallacies in a transcript.
type FallacyDetector interface {
	Run(ctx context.Context, text string) Result
}

// PerspectiveSynthesizer produces alternative perspectives from a transcript
// and its analysis.
type PerspectiveSynthesizer interface {
	Run(ctx context.Context, text string, analysis Result) Result
}

// MemoryStore persists transcripts and analyses. Failures here are terminal
// for the run.
type MemoryStore interface {
	StoreTranscript(ctx context.Context, media MediaInfo, transcript, source string) Result
	StoreAnalysis(ctx context.Context, media MediaInfo, analysis Result) Result
}

// AuxiliaryStore is the contract for the optional graph and continual
// memory stores, whose failures downgrade to warnings.
type AuxiliaryStore interface {
	Run(ctx context.Context, media MediaInfo, analysis Result) Result
}
