package download

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

// DefaultBinary is the downloader invoked when the config leaves it unset.
const DefaultBinary = "yt-dlp"

// Known quality labels mapped to yt-dlp format selectors.
var formatSelectors = map[string]string{
	"best":  "bestvideo*+bestaudio/best",
	"audio": "bestaudio/best",
	"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
}

// Runner executes the downloader binary and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client fetches media URLs into the staging directory via yt-dlp.
type Client struct {
	binary     string
	stagingDir string
	timeout    time.Duration
	runner     Runner
}

// Option customizes the download client.
type Option func(*Client)

// WithRunner sets a custom command runner (for testing).
func WithRunner(runner Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// WithTimeout bounds a single download invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient constructs a download client. stagingDir must exist before the
// first Run call.
func NewClient(binary, stagingDir string, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	c := &Client{
		binary:     binary,
		stagingDir: stagingDir,
		runner:     runCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// metadata is the subset of yt-dlp's JSON dump the pipeline consumes.
type metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Extractor   string  `json:"extractor_key"`
	WebpageURL  string  `json:"webpage_url"`
	Filename    string  `json:"_filename"`
}

// Run downloads the URL and returns a Result carrying the local path and the
// media metadata every later phase consumes.
func (c *Client) Run(ctx context.Context, url, quality string) pipeline.Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "download", "run", "url required", nil).Error())
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "download", "run", "unsupported url scheme", nil).Error())
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.runner(ctx, c.binary, c.buildArgs(url, quality)...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return pipeline.Fail(services.Wrap(services.ErrConfiguration, "download", "run", c.binary+" is not installed", err).Error())
		}
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "download", "run", "downloader failed", err).Error())
	}

	meta, err := parseMetadata(output)
	if err != nil {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "download", "parse", "unreadable downloader output", err).Error())
	}
	localPath := strings.TrimSpace(meta.Filename)
	if localPath == "" {
		return pipeline.Fail(services.Wrap(services.ErrExternalTool, "download", "parse", "downloader reported no output file", nil).Error())
	}
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(c.stagingDir, filepath.Base(localPath))
	}

	return pipeline.Ok(
		pipeline.F(pipeline.KeyLocalPath, localPath),
		pipeline.F(pipeline.KeyVideoID, meta.ID),
		pipeline.F(pipeline.KeyTitle, meta.Title),
		pipeline.F(pipeline.KeyPlatform, platformName(meta.Extractor)),
		pipeline.F(pipeline.KeyDescription, meta.Description),
		pipeline.F(pipeline.KeyDuration, meta.Duration),
	)
}

func (c *Client) buildArgs(url, quality string) []string {
	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"--no-progress",
		"--print-json",
		"-o", filepath.Join(c.stagingDir, "%(id)s.%(ext)s"),
	}
	if selector, ok := formatSelectors[strings.ToLower(strings.TrimSpace(quality))]; ok {
		args = append(args, "-f", selector)
	}
	return append(args, url)
}

// parseMetadata reads the last JSON object yt-dlp prints; playlists and
// warnings can precede it on stdout.
func parseMetadata(output []byte) (metadata, error) {
	var meta metadata
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			return meta, fmt.Errorf("parse downloader json: %w", err)
		}
		return meta, nil
	}
	return meta, errors.New("no json object in downloader output")
}

func platformName(extractor string) string {
	extractor = strings.ToLower(strings.TrimSpace(extractor))
	if extractor == "" {
		return "unknown"
	}
	return extractor
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return output, fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return output, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// EnsureStaging creates the staging directory when missing.
func (c *Client) EnsureStaging() error {
	if strings.TrimSpace(c.stagingDir) == "" {
		return services.Wrap(services.ErrConfiguration, "download", "staging", "staging directory not configured", nil)
	}
	return os.MkdirAll(c.stagingDir, 0o755)
}
