package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler renders compact human-oriented lines with the run/step
// fields pulled to the front. Color is enabled only for terminals.
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	color  bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleHandler{writer: w, level: lvl, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	fields := make(map[string]string, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		collectAttr(fields, "", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collectAttr(fields, "", attr)
		return true
	})

	var b strings.Builder
	b.WriteString(h.paint(ansiDim, timestamp.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.levelLabel(record.Level))
	if scope := h.scope(fields); scope != "" {
		b.WriteByte(' ')
		b.WriteString(h.paint(ansiCyan, scope))
	}
	b.WriteByte(' ')
	b.WriteString(record.Message)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		switch key {
		case FieldRunID, FieldPhase, FieldStep:
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(h.paint(ansiDim, key+"="+fields[key]))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &consoleHandler{writer: h.writer, level: h.level, color: h.color}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened; console output keys are already namespaced enough.
	return h
}

func (h *consoleHandler) scope(fields map[string]string) string {
	parts := make([]string, 0, 3)
	if v := fields[FieldRunID]; v != "" {
		if len(v) > 8 {
			v = v[:8]
		}
		parts = append(parts, v)
	}
	if v := fields[FieldPhase]; v != "" {
		parts = append(parts, v)
	}
	if v := fields[FieldStep]; v != "" && v != fields[FieldPhase] {
		parts = append(parts, v)
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, "/") + "]"
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint(ansiRed, "ERROR")
	case level >= slog.LevelWarn:
		return h.paint(ansiYellow, "WARN ")
	case level >= slog.LevelInfo:
		return "INFO "
	default:
		return h.paint(ansiDim, "DEBUG")
	}
}

func (h *consoleHandler) paint(code, text string) string {
	if !h.color {
		return text
	}
	return code + text + ansiReset
}

func collectAttr(into map[string]string, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		for _, nested := range value.Group() {
			collectAttr(into, key, nested)
		}
		return
	}
	into[key] = fmt.Sprintf("%v", value.Any())
}
