package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/analysis"
	"loom/internal/budget"
	"loom/internal/config"
	"loom/internal/download"
	"loom/internal/logging"
	"loom/internal/memory"
	"loom/internal/notifications"
	"loom/internal/pipeline"
	"loom/internal/ratelimit"
	"loom/internal/telemetry"
	"loom/internal/tenancy"
	"loom/internal/transcribe"
	"loom/internal/upload"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var tenantID string
	var workspace string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Run the full pipeline for a media URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout carries only the run summary.
			logger, err := logging.New(logging.Options{
				Level:            cfg.LogLevel,
				Format:           cfg.LogFormat,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			orch, cleanup, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runCtx = tenancy.WithTenant(runCtx, tenancy.Tenant{ID: tenantID, Workspace: workspace})

			if strings.TrimSpace(quality) == "" {
				quality = cfg.Downloader.DefaultQuality
			}

			result := orch.Process(runCtx, args[0], quality)

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(result); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderRunSummary(result))
			}

			if result.Status != pipeline.RunStatusSuccess {
				return fmt.Errorf("pipeline failed at %s: %s", result.Step, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Download quality (best, audio, 1080p, 720p, 480p)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant identifier for rate limiting and budgets")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace within the tenant")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the run result as JSON")

	return cmd
}

func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	downloader := download.NewClient(
		cfg.Downloader.Binary,
		cfg.Paths.StagingDir,
		download.WithTimeout(time.Duration(cfg.Downloader.TimeoutSeconds)*time.Second),
	)
	if err := downloader.EnsureStaging(); err != nil {
		return nil, nil, fmt.Errorf("ensure staging directory: %w", err)
	}

	transcriber := transcribe.NewService(transcribe.Config{
		Binary:   cfg.Transcription.Binary,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		Timeout:  time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
	})

	client := analysis.NewClient(
		cfg.Analysis.APIKey,
		analysis.WithBaseURL(cfg.Analysis.BaseURL),
		analysis.WithModel(cfg.Analysis.Model),
		analysis.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second}),
	)
	suite := analysis.NewSuite(client, logger)

	store, err := memory.Open(cfg.Paths.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open memory store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close memory store", logging.Error(err))
		}
	}

	opts := pipeline.Options{
		Logger:       logger,
		Downloader:   downloader,
		Transcriber:  transcriber,
		Uploader:     upload.NewArchiver(cfg.Upload.Enabled, cfg.Paths.LibraryDir, cfg.Upload.LinkBaseURL),
		Analyzer:     suite.Analyzer(),
		Fallacies:    suite.FallacyDetector(),
		Perspectives: suite.PerspectiveSynthesizer(),
		Memory:       store,
		Notifier:     notifications.NewService(cfg),
		Limiter: ratelimit.New(ratelimit.Settings{
			PipelinePerMinute: cfg.RateLimit.PipelinePerMinute,
			PipelineBurst:     cfg.RateLimit.PipelineBurst,
			ToolPerMinute:     cfg.RateLimit.ToolPerMinute,
			ToolBurst:         cfg.RateLimit.ToolBurst,
		}),
		Budgets: budget.NewTracker(budget.Limits{
			Total:   cfg.Budget.TotalLimit,
			PerTask: cfg.Budget.PerTask,
		}),
		Sink: telemetry.NewLogSink(logger),
		Middlewares: []pipeline.Middleware{
			pipeline.NewLogPatternMiddleware(5),
			pipeline.NewTracingMiddleware(nil),
		},
		RetryAttempts: cfg.Workflow.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Workflow.RetryDelaySeconds * float64(time.Second)),
		Compression: pipeline.CompressionSettings{
			Enabled:   cfg.Analysis.CompressionEnabled,
			MinTokens: cfg.Analysis.CompressionMinTokens,
			MaxTokens: cfg.Analysis.CompressionMaxTokens,
		},
	}

	// Constructors return typed nil pointers when unconfigured; assigning
	// those to the interface fields would defeat the orchestrator's nil
	// checks.
	if provider := transcribe.NewProviderClient(cfg.Transcription.ProviderFallbackURL); provider != nil {
		opts.Provider = provider
	}
	if cfg.Memory.GraphEnabled {
		opts.Graph = memory.NewGraphStore(store)
	}
	if cfg.Memory.ContinualEnabled {
		opts.Continual = memory.NewContinualStore(store)
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

func renderRunSummary(result pipeline.RunResult) string {
	rows := [][]string{
		{"Run ID", result.RunID},
		{"Status", result.Status},
	}
	if result.Step != "" {
		rows = append(rows, []string{"Failed step", result.Step})
	}
	if result.Error != "" {
		rows = append(rows, []string{"Error", result.Error})
	}
	rows = append(rows, []string{"Duration", fmt.Sprintf("%d ms", result.DurationMS)})

	appendPhase := func(name string, phase *pipeline.Result) {
		if phase == nil {
			return
		}
		rows = append(rows, []string{name, phaseSummary(*phase)})
	}
	appendPhase("Download", result.Download)
	appendPhase("Transcription", result.Transcription)
	appendPhase("Upload", result.Upload)
	appendPhase("Analysis", result.Analysis)
	appendPhase("Fallacies", result.Fallacies)
	appendPhase("Perspectives", result.Perspectives)
	appendPhase("Memory", result.Memory)
	appendPhase("Notification", result.Notification)

	for _, warning := range result.Warnings {
		rows = append(rows, []string{"Warning", warning})
	}

	return renderTable(
		[]string{"Field", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	)
}

func phaseSummary(phase pipeline.Result) string {
	switch {
	case phase.Skipped():
		return "skipped: " + phase.String(pipeline.KeyReason)
	case !phase.Success():
		return "failed: " + phase.Err()
	case phase.CustomStatus() != "":
		return "ok (" + string(phase.CustomStatus()) + ")"
	default:
		return "ok"
	}
}
