package pipeline_test

import (
	"fmt"
	"strings"
	"testing"

	"loom/internal/pipeline"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestCompressTranscriptDisabledPassesThrough(t *testing.T) {
	text := words(100)
	got := pipeline.CompressTranscript(text, pipeline.CompressionSettings{
		Enabled:   false,
		MinTokens: 10,
		MaxTokens: 20,
	})
	if got != text {
		t.Fatal("disabled compression must pass through")
	}
}

func TestCompressTranscriptBelowThresholdPassesThrough(t *testing.T) {
	text := words(50)
	got := pipeline.CompressTranscript(text, pipeline.CompressionSettings{
		Enabled:   true,
		MinTokens: 100,
		MaxTokens: 20,
	})
	if got != text {
		t.Fatal("short transcripts must pass through")
	}
}

func TestCompressTranscriptKeepsHeadAndTail(t *testing.T) {
	text := words(1000)
	got := pipeline.CompressTranscript(text, pipeline.CompressionSettings{
		Enabled:   true,
		MinTokens: 100,
		MaxTokens: 100,
	})
	if got == text {
		t.Fatal("expected compression")
	}
	if !strings.Contains(got, " [...] ") {
		t.Fatal("expected elision marker")
	}
	if !strings.HasPrefix(got, "w0 ") {
		t.Fatalf("expected head preserved, got %q", got[:20])
	}
	if !strings.HasSuffix(got, "w999") {
		t.Fatal("expected tail preserved")
	}

	compressed := pipeline.TokenCount(got)
	if compressed > 101 {
		t.Fatalf("expected roughly 100 tokens plus the marker, got %d", compressed)
	}
}

func TestTokenCount(t *testing.T) {
	if got := pipeline.TokenCount("  one two   three "); got != 3 {
		t.Fatalf("expected 3 tokens, got %d", got)
	}
	if got := pipeline.TokenCount(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}
}
