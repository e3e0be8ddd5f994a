// Package telemetry defines the best-effort metrics boundary the pipeline
// reports into. Implementations must never fail the caller; a sink that
// cannot record a value drops it.
package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loom/internal/logging"
)

// Sink receives counters, duration observations, and gauge movements from the
// pipeline. All methods are best-effort and safe for concurrent use.
type Sink interface {
	Count(name string, delta int64, labels ...string)
	Observe(name string, d time.Duration, labels ...string)
	GaugeAdd(name string, delta int64)
}

// Noop returns a sink that discards everything.
func Noop() Sink { return noopSink{} }

type noopSink struct{}

func (noopSink) Count(string, int64, ...string)           {}
func (noopSink) Observe(string, time.Duration, ...string) {}
func (noopSink) GaugeAdd(string, int64)                   {}

// NewLogSink returns a sink that records metrics as debug log lines. It keeps
// running totals so gauges and counters read cumulatively.
func NewLogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &logSink{logger: logging.NewComponentLogger(logger, "telemetry")}
}

type logSink struct {
	logger *slog.Logger

	mu       sync.Mutex
	counters map[string]int64

	gauges sync.Map // name -> *atomic.Int64
}

func (s *logSink) Count(name string, delta int64, labels ...string) {
	s.mu.Lock()
	if s.counters == nil {
		s.counters = make(map[string]int64)
	}
	key := name + labelSuffix(labels)
	s.counters[key] += delta
	total := s.counters[key]
	s.mu.Unlock()

	s.logger.Debug("counter",
		logging.String("metric", name),
		logging.Int64("delta", delta),
		logging.Int64("total", total),
		logging.Any("labels", labels),
	)
}

func (s *logSink) Observe(name string, d time.Duration, labels ...string) {
	s.logger.Debug("observation",
		logging.String("metric", name),
		logging.Duration("value", d),
		logging.Any("labels", labels),
	)
}

func (s *logSink) GaugeAdd(name string, delta int64) {
	value, _ := s.gauges.LoadOrStore(name, new(atomic.Int64))
	current := value.(*atomic.Int64).Add(delta)
	s.logger.Debug("gauge",
		logging.String("metric", name),
		logging.Int64("delta", delta),
		logging.Int64("value", current),
	)
}

func labelSuffix(labels []string) string {
	suffix := ""
	for _, label := range labels {
		suffix += "|" + label
	}
	return suffix
}
