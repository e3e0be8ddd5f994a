package transcribe

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage canonicalizes a language tag to its two-letter base form
// ("en-US" and "eng" both become "en"). Unparseable tags normalize to empty,
// which whisper treats as auto-detect.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}
