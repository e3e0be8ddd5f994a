package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Status is the advisory outcome refinement carried by successful Results.
type Status string

const (
	// StatusSkipped marks a step that was a deliberate no-op (feature disabled).
	StatusSkipped Status = "skipped"
	// StatusDegraded marks a step that succeeded through a fallback path.
	StatusDegraded Status = "degraded"
	// StatusUncertain marks a step whose output should be treated with low confidence.
	StatusUncertain Status = "uncertain"
)

// Well-known Result data keys shared between phases.
const (
	KeyLocalPath         = "local_path"
	KeyVideoID           = "video_id"
	KeyTitle             = "title"
	KeyPlatform          = "platform"
	KeyDescription       = "description"
	KeyDuration          = "duration"
	KeyTranscript        = "transcript"
	KeySegments          = "segments"
	KeyLanguage          = "language"
	KeyTranscriptSource  = "transcript_source"
	KeyLinks             = "links"
	KeyReason            = "reason"
	KeyStatusCode        = "status_code"
	KeyRateLimitExceeded = "rate_limit_exceeded"
	KeySentiment         = "sentiment"
	KeyKeywords          = "keywords"
	KeyClaims            = "claims"
	KeySummary           = "summary"
	KeyFallacies         = "fallacies"
	KeyPerspectives      = "perspectives"
)

// Field is a single key/value pair in a Result's data payload.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Result is the tagged outcome every step and phase produces. Data preserves
// insertion order. Results are immutable once constructed except for the
// Metadata side channel, which middleware may append observability
// attachments to.
type Result struct {
	success bool
	keys    []string
	values  map[string]any
	err     string
	status  Status
	meta    map[string]any
}

// Ok builds a successful Result with the given data fields.
func Ok(fields ...Field) Result {
	return newResult(true, "", "", fields)
}

// OkWith builds a successful Result tagged with an advisory status.
func OkWith(status Status, fields ...Field) Result {
	return newResult(true, "", status, fields)
}

// Degraded builds a successful Result produced via a fallback path.
func Degraded(fields ...Field) Result {
	return newResult(true, "", StatusDegraded, fields)
}

// Skip builds a successful Result for a deliberate no-op; reason lands in
// the data payload under KeyReason.
func Skip(reason string, fields ...Field) Result {
	fields = append([]Field{F(KeyReason, reason)}, fields...)
	return newResult(true, "", StatusSkipped, fields)
}

// Fail builds a failed Result. An empty message is replaced so the
// failure invariant (failed Results always carry an error) holds.
func Fail(message string, fields ...Field) Result {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	return newResult(false, message, "", fields)
}

func newResult(success bool, err string, status Status, fields []Field) Result {
	r := Result{
		success: success,
		err:     err,
		status:  status,
		values:  make(map[string]any, len(fields)),
		meta:    make(map[string]any),
	}
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		if _, exists := r.values[field.Key]; !exists {
			r.keys = append(r.keys, field.Key)
		}
		r.values[field.Key] = field.Value
	}
	return r
}

// Success reports whether the step completed. It is the single source of
// truth for branching; CustomStatus is advisory.
func (r Result) Success() bool { return r.success }

// Err returns the error message; empty for successful Results.
func (r Result) Err() string { return r.err }

// CustomStatus returns the advisory status; meaningful only on success.
func (r Result) CustomStatus() Status { return r.status }

// Skipped reports whether the Result marks a deliberate no-op.
func (r Result) Skipped() bool { return r.success && r.status == StatusSkipped }

// Keys returns the data keys in insertion order.
func (r Result) Keys() []string {
	cp := make([]string, len(r.keys))
	copy(cp, r.keys)
	return cp
}

// Get returns the data value for key.
func (r Result) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// String returns the data value for key as a string, or "" when absent or
// not a string.
func (r Result) String(key string) string {
	if v, ok := r.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns the data value for key as an int, handling the numeric types
// JSON decoding produces.
func (r Result) Int(key string) (int, bool) {
	switch v := r.values[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Bool returns the data value for key as a bool.
func (r Result) Bool(key string) bool {
	v, _ := r.values[key].(bool)
	return v
}

// Meta returns an observability attachment by key.
func (r Result) Meta(key string) (any, bool) {
	v, ok := r.meta[key]
	return v, ok
}

// AttachMeta records an observability attachment. This is the only mutation
// permitted after construction; it never changes outcome fields.
func (r *Result) AttachMeta(key string, value any) {
	if key == "" {
		return
	}
	r.meta[key] = value
}

// Merge produces a new Result that is the field union of r and other.
// Neither source is mutated. The union succeeds only when both inputs did;
// error messages are joined; a degraded input degrades the union.
func (r Result) Merge(other Result) Result {
	fields := make([]Field, 0, len(r.keys)+len(other.keys))
	for _, key := range r.keys {
		fields = append(fields, F(key, r.values[key]))
	}
	for _, key := range other.keys {
		if _, exists := r.values[key]; exists {
			continue
		}
		fields = append(fields, F(key, other.values[key]))
	}

	success := r.success && other.success
	errMsg := joinErr(r.err, other.err)

	var status Status
	switch {
	case r.status == StatusDegraded || other.status == StatusDegraded:
		status = StatusDegraded
	case r.status == StatusUncertain || other.status == StatusUncertain:
		status = StatusUncertain
	case r.status == StatusSkipped && other.status == StatusSkipped:
		status = StatusSkipped
	}

	var merged Result
	if success {
		merged = newResult(true, "", status, fields)
	} else {
		if errMsg == "" {
			errMsg = "unknown error"
		}
		merged = newResult(false, errMsg, "", fields)
	}
	for key, value := range r.meta {
		merged.meta[key] = value
	}
	for key, value := range other.meta {
		merged.meta[key] = value
	}
	return merged
}

func joinErr(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}

// MarshalJSON renders the Result with data keys in insertion order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"success":`)
	if r.success {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}

	buf.WriteString(`,"data":{`)
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')

	if r.err != "" {
		encoded, err := json.Marshal(r.err)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"error":`)
		buf.Write(encoded)
	}
	if r.status != "" {
		buf.WriteString(`,"custom_status":"` + string(r.status) + `"`)
	}
	if len(r.meta) > 0 {
		encoded, err := json.Marshal(r.meta)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"metadata":`)
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
