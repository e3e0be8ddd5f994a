// Package analysis extracts structure from transcripts: sentiment, keywords,
// claims, fallacies, and alternative perspectives. It talks to an
// OpenAI-compatible chat API when a key is configured and falls back to
// heuristics otherwise.
package analysis
