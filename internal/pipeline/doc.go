// Package pipeline contains the staged execution engine: the tagged Result
// type every step produces, the retry/backoff executor, the step middleware
// chain, and the phase orchestrator that drives a media URL from download
// through transcription, analysis, and finalization.
//
// Collaborators (downloader, transcriber, analyzer, stores, notifier) are
// consumed through narrow interfaces declared here and implemented in their
// own packages.
package pipeline
