package pipeline

import "strings"

// Classification buckets a failed Result for the retry executor.
type Classification string

const (
	// ClassPermanent means a client/input error that retrying cannot fix.
	ClassPermanent Classification = "permanent"
	// ClassTransient means a network/availability error worth retrying.
	ClassTransient Classification = "transient"
	// ClassRateLimit means a 429-equivalent from a collaborator, retried with
	// backoff. Distinct from the engine's own admission-control rejection,
	// which consumes zero attempts.
	ClassRateLimit Classification = "rate_limit"
)

// permanentMarkers match the message prefixes services.Wrap produces for
// input/configuration errors. Retrying those can never succeed.
var permanentMarkers = []string{
	"validation error",
	"configuration error",
	"not found",
	"budget exceeded",
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"no such host",
	"dns",
	"temporarily",
	"temporary failure",
	"unavailable",
	"eof",
}

// Classify buckets a failed Result. It is a pure function of the Result:
// classifying the same Result twice always yields the same answer. Unknown
// errors classify transient; retrying something permanent wastes a few
// seconds, while not retrying something transient loses the run.
func Classify(r Result) Classification {
	if code, ok := r.Int(KeyStatusCode); ok {
		switch {
		case code == 429:
			return ClassRateLimit
		case code >= 400 && code < 500:
			return ClassPermanent
		}
	}

	message := strings.ToLower(r.Err())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") {
		return ClassRateLimit
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(message, marker) {
			return ClassPermanent
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(message, marker) {
			return ClassTransient
		}
	}
	return ClassTransient
}
