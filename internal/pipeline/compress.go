package pipeline

import "strings"

// CompressionSettings gates transcript compression before analysis.
type CompressionSettings struct {
	Enabled   bool
	MinTokens int
	MaxTokens int
}

// CompressTranscript reduces a long transcript to roughly MaxTokens tokens
// by keeping the head and tail, which carry most of the framing and
// conclusions. It is a pass-through unless the feature flag is on and the
// transcript meets the minimum-token threshold.
func CompressTranscript(transcript string, settings CompressionSettings) string {
	if !settings.Enabled {
		return transcript
	}
	tokens := strings.Fields(transcript)
	if settings.MinTokens <= 0 || len(tokens) < settings.MinTokens {
		return transcript
	}
	budget := settings.MaxTokens
	if budget <= 0 || budget >= len(tokens) {
		return transcript
	}

	head := budget * 6 / 10
	tail := budget - head
	if head == 0 || tail == 0 {
		head = budget
		tail = 0
	}

	var b strings.Builder
	b.WriteString(strings.Join(tokens[:head], " "))
	if tail > 0 {
		b.WriteString(" [...] ")
		b.WriteString(strings.Join(tokens[len(tokens)-tail:], " "))
	}
	return b.String()
}

// TokenCount approximates transcript length for threshold checks.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}
