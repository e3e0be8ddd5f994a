// Package transcribe produces transcripts from downloaded media. The primary
// path shells out to the whisper CLI; a provider client fetches
// platform-supplied captions for the degraded fallback.
package transcribe
