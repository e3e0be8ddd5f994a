package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Downloader contains configuration for the media download tool.
type Downloader struct {
	Binary         string `toml:"binary"`
	DefaultQuality string `toml:"default_quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains configuration for the local transcription engine
// and the best-effort provider transcript fallback.
type Transcription struct {
	Binary              string `toml:"binary"`
	Model               string `toml:"model"`
	Language            string `toml:"language"`
	ProviderFallbackURL string `toml:"provider_fallback_url"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
}

// Analysis contains shared LLM connection settings plus transcript
// compression controls.
type Analysis struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Model                 string `toml:"model"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	CompressionEnabled    bool   `toml:"compression_enabled"`
	CompressionMinTokens  int    `toml:"compression_min_tokens"`
	CompressionMaxTokens  int    `toml:"compression_max_tokens"`
}

// Upload contains configuration for archiving downloaded media.
type Upload struct {
	Enabled     bool   `toml:"enabled"`
	LinkBaseURL string `toml:"link_base_url"`
}

// Notifications contains configuration for the Discord webhook notifier.
type Notifications struct {
	DiscordWebhook string `toml:"discord_webhook"`
	RequestTimeout int    `toml:"request_timeout"`
	Runs           bool   `toml:"runs"`
	Errors         bool   `toml:"errors"`
}

// Memory controls the optional graph and continual memory stores.
type Memory struct {
	GraphEnabled     bool `toml:"graph_enabled"`
	ContinualEnabled bool `toml:"continual_enabled"`
}

// RateLimit contains token-bucket admission control settings. Rates are per
// minute, buckets are keyed by tenant:workspace.
type RateLimit struct {
	PipelinePerMinute int `toml:"pipeline_per_minute"`
	PipelineBurst     int `toml:"pipeline_burst"`
	ToolPerMinute     int `toml:"tool_per_minute"`
	ToolBurst         int `toml:"tool_burst"`
}

// Budget contains per-run spend limits in abstract cost units.
type Budget struct {
	TotalLimit float64            `toml:"total_limit"`
	PerTask    map[string]float64 `toml:"per_task"`
}

// Workflow contains retry and backoff settings for step execution.
type Workflow struct {
	RetryAttempts     int     `toml:"retry_attempts"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
}

// Config encapsulates all configuration values for Loom.
//
// Configuration sections by subsystem:
//   - Paths: staging, library, data, and log directories
//   - Downloader: yt-dlp binary and defaults
//   - Transcription: whisper binary, model, provider fallback
//   - Analysis: LLM connection settings and transcript compression
//   - Upload: library archiving of downloaded media
//   - Notifications: Discord webhook settings
//   - Memory: optional graph/continual stores
//   - RateLimit: tenant-keyed token buckets
//   - Budget: per-run spend limits
//   - Workflow: retry attempts and base delay
type Config struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Paths         Paths         `toml:"paths"`
	Downloader    Downloader    `toml:"downloader"`
	Transcription Transcription `toml:"transcription"`
	Analysis      Analysis      `toml:"analysis"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Memory        Memory        `toml:"memory"`
	RateLimit     RateLimit     `toml:"ratelimit"`
	Budget        Budget        `toml:"budget"`
	Workflow      Workflow      `toml:"workflow"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the staging, library, data, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LibraryDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory
// and returns an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	paths := []*string{
		&c.Paths.StagingDir,
		&c.Paths.LibraryDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
	}
	for _, p := range paths {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		expanded, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Downloader.Binary = strings.TrimSpace(c.Downloader.Binary)
	c.Transcription.Binary = strings.TrimSpace(c.Transcription.Binary)
	c.Analysis.BaseURL = strings.TrimRight(strings.TrimSpace(c.Analysis.BaseURL), "/")
	c.Notifications.DiscordWebhook = strings.TrimSpace(c.Notifications.DiscordWebhook)
	return nil
}
