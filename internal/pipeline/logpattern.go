package pipeline

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"loom/internal/logging"
)

const (
	logCollectorKey = "logpattern.collector"
	// MetaLogPatterns is the Result metadata key the middleware attaches its
	// frequency-ranked summary under.
	MetaLogPatterns = "log_patterns"
)

// LogPatternMiddleware installs a temporary log collector for the step's
// duration, normalizes captured messages by collapsing numeric and hex
// tokens, and attaches a frequency-ranked pattern summary to the Result's
// metadata.
type LogPatternMiddleware struct {
	topN int
}

// NewLogPatternMiddleware keeps the topN most frequent patterns per step.
func NewLogPatternMiddleware(topN int) *LogPatternMiddleware {
	if topN <= 0 {
		topN = 5
	}
	return &LogPatternMiddleware{topN: topN}
}

func (*LogPatternMiddleware) Name() string { return "log_patterns" }

func (m *LogPatternMiddleware) BeforeStep(ctx context.Context, step *StepContext) context.Context {
	collector := newLogCollector()
	step.Metadata[logCollectorKey] = collector
	return logging.WithCapture(ctx, collector.record)
}

func (m *LogPatternMiddleware) AfterStep(_ context.Context, step *StepContext) {
	m.attach(step)
}

func (m *LogPatternMiddleware) OnError(_ context.Context, step *StepContext) {
	m.attach(step)
}

func (m *LogPatternMiddleware) attach(step *StepContext) {
	collector, ok := step.Metadata[logCollectorKey].(*logCollector)
	if !ok {
		return
	}
	summary := collector.Summary(m.topN)
	if len(summary) == 0 {
		return
	}
	step.Result.AttachMeta(MetaLogPatterns, summary)
}

// LogPattern is one normalized message pattern with its occurrence count.
type LogPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

type logCollector struct {
	mu     sync.Mutex
	counts map[string]int
}

func newLogCollector() *logCollector {
	return &logCollector{counts: make(map[string]int)}
}

func (c *logCollector) record(_ slog.Level, message string) {
	pattern := NormalizeLogMessage(message)
	if pattern == "" {
		return
	}
	c.mu.Lock()
	c.counts[pattern]++
	c.mu.Unlock()
}

// Summary returns the topN patterns ranked by frequency, ties broken
// lexically so the output is deterministic.
func (c *logCollector) Summary(topN int) []LogPattern {
	c.mu.Lock()
	patterns := make([]LogPattern, 0, len(c.counts))
	for pattern, count := range c.counts {
		patterns = append(patterns, LogPattern{Pattern: pattern, Count: count})
	}
	c.mu.Unlock()

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Pattern < patterns[j].Pattern
	})
	if len(patterns) > topN {
		patterns = patterns[:topN]
	}
	return patterns
}

var (
	hexTokenPattern = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	hexBlobPattern  = regexp.MustCompile(`\b[0-9a-fA-F]{8,}\b`)
	numberPattern   = regexp.MustCompile(`\d+(\.\d+)?`)
)

// NormalizeLogMessage collapses numeric and hex tokens so messages differing
// only in identifiers or sizes fold into one pattern.
func NormalizeLogMessage(message string) string {
	normalized := hexTokenPattern.ReplaceAllString(message, "0x*")
	normalized = hexBlobPattern.ReplaceAllString(normalized, "*")
	normalized = numberPattern.ReplaceAllString(normalized, "#")
	return normalized
}
