package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/pipeline"
	"loom/internal/services"
)

// Whisper configuration defaults.
const (
	DefaultBinary = "whisper"
	DefaultModel  = "base"
	outputFormat  = "json"
)

// Config captures runtime settings for whisper invocations.
type Config struct {
	// Binary is the whisper CLI to invoke.
	Binary string
	// Model selects the whisper model (e.g. "base", "large-v3").
	Model string
	// Language forces a transcription language; empty means auto-detect.
	Language string
	// Timeout bounds a single transcription run.
	Timeout time.Duration
}

// Service provides whisper transcription of local media files.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	cfg.Language = NormalizeLanguage(cfg.Language)
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string { return s.cfg.Model }

// Segment is one timed span of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// whisperPayload is the JSON structure the whisper CLI writes.
type whisperPayload struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Run transcribes the file at localPath. An absent whisper binary surfaces an
// engine-unavailable message so callers can take a degraded path.
func (s *Service) Run(ctx context.Context, localPath string) pipeline.Result {
	localPath = strings.TrimSpace(localPath)
	if localPath == "" {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "transcription", "run", "media path required", nil).Error())
	}
	if _, err := os.Stat(localPath); err != nil {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "transcription", "run", "media file missing", err).Error())
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	outputDir := filepath.Dir(localPath)
	if err := s.run(ctx, s.cfg.Binary, s.buildArgs(localPath, outputDir)...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return pipeline.Fail(services.Wrap(services.ErrUnavailable, "transcription", "run", s.cfg.Binary+" is not installed", err).Error())
		}
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "transcription", "run", "whisper failed", err).Error())
	}

	jsonPath := outputPath(localPath, outputDir)
	payload, err := loadPayload(jsonPath)
	if err != nil {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "transcription", "parse", "unreadable whisper output", err).Error())
	}
	transcript := strings.TrimSpace(payload.Text)
	if transcript == "" {
		transcript = joinSegments(payload.Segments)
	}
	if transcript == "" {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "transcription", "parse", "empty transcript", nil).Error())
	}

	language := NormalizeLanguage(payload.Language)
	if language == "" {
		language = s.cfg.Language
	}
	return pipeline.Ok(
		pipeline.F(pipeline.KeyTranscript, transcript),
		pipeline.F(pipeline.KeySegments, payload.Segments),
		pipeline.F(pipeline.KeyLanguage, language),
		pipeline.F(pipeline.KeyTranscriptSource, "whisper"),
	)
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		source,
		"--model", s.cfg.Model,
		"--output_format", outputFormat,
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func outputPath(source, outputDir string) string {
	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outputDir, baseName+".json")
}

func loadPayload(jsonPath string) (whisperPayload, error) {
	var payload whisperPayload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisper json: %w", err)
	}
	return payload, nil
}

func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
