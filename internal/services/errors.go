package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnavailable   = errors.New("engine unavailable")
	ErrBudget        = errors.New("budget exceeded")
)

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsPermanent reports whether the error carries a marker that should never be
// retried by the executor.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBudget)
}

var engineUnavailableMarkers = []string{
	"engine unavailable",
	"not installed",
	"executable file not found",
	"no transcription engine",
}

// IsEngineUnavailable reports whether an error message matches the
// transcription engine-unavailable signature the orchestrator treats as a
// cue for the degraded fallback. Any other failure must not trigger the
// fallback.
func IsEngineUnavailable(message string) bool {
	message = strings.ToLower(message)
	for _, marker := range engineUnavailableMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
