package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"loom/internal/budget"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/ratelimit"
	"loom/internal/services"
	"loom/internal/telemetry"
	"loom/internal/tenancy"
)

// Phase and step names used for failure loci and observability.
const (
	StepAdmission    = "admission"
	StepDownload     = "download"
	StepTranscribe   = "transcription"
	StepUpload       = "upload"
	StepAnalysis     = "analysis"
	StepFallacy      = "fallacy_detection"
	StepPerspective  = "perspective_synthesis"
	StepTranscriptDB = "transcript_storage"
	StepAnalysisDB   = "analysis_memory"
	StepGraph        = "graph_memory"
	StepContinual    = "continual_memory"
	StepNotify       = "notification"
)

const stepCost = 1.0

// Options wires an Orchestrator. Downloader, Transcriber, Analyzer,
// FallacyDetector, PerspectiveSynthesizer, and Memory are required;
// everything else has a working default or is optional.
type Options struct {
	Logger *slog.Logger

	Downloader   Downloader
	Transcriber  Transcriber
	Provider     ProviderTranscripts
	Uploader     Uploader
	Analyzer     Analyzer
	Fallacies    FallacyDetector
	Perspectives PerspectiveSynthesizer
	Memory       MemoryStore
	Graph        AuxiliaryStore
	Continual    AuxiliaryStore
	Notifier     notifications.Service

	Limiter *ratelimit.Limiter
	Budgets *budget.Tracker
	Sink    telemetry.Sink

	Middlewares []Middleware

	RetryAttempts int
	RetryDelay    time.Duration
	Compression   CompressionSettings
}

// Orchestrator drives the fixed phase sequence for one pipeline run at a
// time. It owns all collaborator handles for its lifetime; handles are
// read-shared across concurrently running steps.
type Orchestrator struct {
	logger *slog.Logger

	downloader   Downloader
	transcriber  Transcriber
	provider     ProviderTranscripts
	uploader     Uploader
	analyzer     Analyzer
	fallacies    FallacyDetector
	perspectives PerspectiveSynthesizer
	memory       MemoryStore
	graph        AuxiliaryStore
	continual    AuxiliaryStore
	notifier     notifications.Service

	limiter  *ratelimit.Limiter
	budgets  *budget.Tracker
	sink     telemetry.Sink
	chain    *Chain
	executor *Executor

	attempts    int
	delay       time.Duration
	compression CompressionSettings
}

// New validates the wiring and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Downloader == nil:
		return nil, errors.New("pipeline: downloader is required")
	case opts.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case opts.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case opts.Fallacies == nil:
		return nil, errors.New("pipeline: fallacy detector is required")
	case opts.Perspectives == nil:
		return nil, errors.New("pipeline: perspective synthesizer is required")
	case opts.Memory == nil:
		return nil, errors.New("pipeline: memory store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.Noop()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Settings{})
	}
	budgets := opts.Budgets
	if budgets == nil {
		budgets = budget.NewTracker(budget.Limits{})
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}

	o := &Orchestrator{
		logger:       logging.NewComponentLogger(logger, "pipeline"),
		downloader:   opts.Downloader,
		transcriber:  opts.Transcriber,
		provider:     opts.Provider,
		uploader:     opts.Uploader,
		analyzer:     opts.Analyzer,
		fallacies:    opts.Fallacies,
		perspectives: opts.Perspectives,
		memory:       opts.Memory,
		graph:        opts.Graph,
		continual:    opts.Continual,
		notifier:     notifier,
		limiter:      limiter,
		budgets:      budgets,
		sink:         sink,
		attempts:     opts.RetryAttempts,
		delay:        opts.RetryDelay,
		compression:  opts.Compression,
	}
	o.chain = NewChain(logger, opts.Middlewares...)
	o.executor = NewExecutor(limiter, sink, logger)
	return o, nil
}

// stepError tags a phase failure with the step that caused it, carrying the
// failed Result so transport markers survive into the run envelope.
type stepError struct {
	step   string
	result Result
}

func (e *stepError) Error() string { return e.step + ": " + e.result.Err() }

func failStep(step string, res Result) *stepError {
	return &stepError{step: step, result: res}
}

// failRun records the failure locus and lifts rate-limit markers from the
// step Result into the transport-level fields of the envelope.
func failRun(out RunResult, step string, res Result) RunResult {
	out.Step = step
	out.Error = res.Err()
	if res.Bool(KeyRateLimitExceeded) {
		out.RateLimitExceeded = true
		out.StatusCode = 429
		if code, ok := res.Int(KeyStatusCode); ok {
			out.StatusCode = code
		}
	}
	return out
}

// Process runs the full pipeline for one media URL. Failure of any critical
// step is terminal for the run; there is no automatic whole-pipeline
// restart.
func (o *Orchestrator) Process(ctx context.Context, url, quality string) RunResult {
	start := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	tenant := tenancy.FromContext(ctx)
	key := tenant.Key()

	out := RunResult{RunID: runID, Status: RunStatusError}
	logger := logging.WithContext(ctx, o.logger)

	if !o.limiter.AllowPipeline(key) {
		o.sink.Count("pipeline_admission_rejected", 1, key)
		logger.Warn("pipeline invocation rejected by rate limiter",
			logging.String(logging.FieldTenant, key),
			logging.String(logging.FieldEventType, "pipeline_rate_limited"),
			logging.String(logging.FieldErrorHint, "retry after the current rate window"),
		)
		out.Step = StepAdmission
		out.Error = "too many requests"
		out.StatusCode = 429
		out.RateLimitExceeded = true
		out.DurationMS = time.Since(start).Milliseconds()
		return out
	}

	lease, release := o.budgets.Begin(key)
	defer release()

	o.sink.GaugeAdd("pipeline_inflight", 1)
	o.sink.Count("pipeline_requests", 1, key)
	defer func() {
		o.sink.GaugeAdd("pipeline_inflight", -1)
		o.sink.Observe("pipeline_duration", time.Since(start))
	}()

	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("url", url),
		logging.String("quality", quality),
	)

	finish := func(out RunResult) RunResult {
		out.DurationMS = time.Since(start).Milliseconds()
		if out.Status == RunStatusSuccess {
			logger.Info("pipeline run completed",
				logging.String(logging.FieldEventType, "run_complete"),
				logging.Duration("elapsed", time.Since(start)),
			)
		} else {
			o.sink.Count("pipeline_failures", 1, out.Step)
			logger.Error("pipeline run failed",
				logging.String(logging.FieldEventType, "run_failure"),
				logging.String(logging.FieldStep, out.Step),
				logging.String("error_message", out.Error),
			)
			o.notifyFailure(ctx, out)
		}
		return out
	}

	// Phase: download. Single step; failure is terminal.
	dctx := services.WithPhase(ctx, "download")
	download := o.runStep(dctx, StepDownload,
		map[string]any{"url": url, "quality": quality},
		RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
		func(ctx context.Context) Result { return o.downloader.Run(ctx, url, quality) },
	)
	out.Download = &download
	if !download.Success() {
		return finish(failRun(out, StepDownload, download))
	}
	media := mediaFromResult(download, url)

	// Phase: transcribe + upload, independent of each other. An upload
	// failure still awaits in-flight transcription so completed work is not
	// lost silently; the group deliberately carries no cancel context.
	var transcription, upload Result
	upload = Skip("uploads disabled")
	tctx := services.WithPhase(ctx, "transcribe_upload")
	var g errgroup.Group
	g.Go(func() error {
		transcription = o.transcribeWithFallback(tctx, media)
		if !transcription.Success() {
			return failStep(StepTranscribe, transcription)
		}
		return nil
	})
	if o.uploader != nil {
		g.Go(func() error {
			upload = o.runStep(tctx, StepUpload,
				map[string]any{"local_path": media.LocalPath, "platform": media.Platform},
				RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
				func(ctx context.Context) Result { return o.uploader.Run(ctx, media.LocalPath, media.Platform) },
			)
			if !upload.Success() {
				return failStep(StepUpload, upload)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		out.Transcription = &transcription
		out.Upload = &upload
		return finish(withStepError(out, err))
	}
	out.Transcription = &transcription
	out.Upload = &upload

	transcript := transcription.String(KeyTranscript)

	// Phase: analyze, on the possibly compressed transcript.
	actx := services.WithPhase(ctx, "analyze")
	filtered := CompressTranscript(transcript, o.compression)
	if res, ok := o.charge(lease, StepAnalysis); !ok {
		out.Analysis = &res
		return finish(failRun(out, StepAnalysis, res))
	}
	analysis := o.runStep(actx, StepAnalysis,
		map[string]any{"tokens": TokenCount(filtered)},
		RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
		func(ctx context.Context) Result { return o.analyzer.Run(ctx, filtered) },
	)
	out.Analysis = &analysis
	if !analysis.Success() {
		return finish(failRun(out, StepAnalysis, analysis))
	}

	// Fan-out: fallacy detection and perspective synthesis. Either failing
	// cancels the other in-flight step and aborts the phase.
	for _, task := range []string{StepFallacy, StepPerspective} {
		if res, ok := o.charge(lease, task); !ok {
			return finish(failRun(out, task, res))
		}
	}
	var fallacies, perspectives Result
	g2, g2ctx := errgroup.WithContext(actx)
	g2.Go(func() error {
		fallacies = o.runStep(g2ctx, StepFallacy, nil,
			RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
			func(ctx context.Context) Result { return o.fallacies.Run(ctx, filtered) },
		)
		if !fallacies.Success() {
			return failStep(StepFallacy, fallacies)
		}
		return nil
	})
	g2.Go(func() error {
		perspectives = o.runStep(g2ctx, StepPerspective, nil,
			RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
			func(ctx context.Context) Result { return o.perspectives.Run(ctx, filtered, analysis) },
		)
		if !perspectives.Success() {
			return failStep(StepPerspective, perspectives)
		}
		return nil
	})
	if err := g2.Wait(); err != nil {
		out.Fallacies = &fallacies
		out.Perspectives = &perspectives
		return finish(withStepError(out, err))
	}
	out.Fallacies = &fallacies
	out.Perspectives = &perspectives

	// Phase: finalize. Storage and notification fan out; graph/continual
	// failures downgrade to warnings, everything else is terminal. A
	// notification failure must not cancel in-flight storage, so this group
	// also carries no cancel context: siblings are awaited, never cancelled.
	fctx := services.WithPhase(ctx, "finalize")
	var transcriptRes, analysisRes, notifyRes Result
	var warnMu sync.Mutex
	combined := analysis.Merge(fallacies).Merge(perspectives)

	var g3 errgroup.Group
	g3.Go(func() error {
		transcriptRes = o.runStep(fctx, StepTranscriptDB, nil,
			RetryOptions{Attempts: o.attempts, Delay: o.delay},
			func(ctx context.Context) Result {
				return o.memory.StoreTranscript(ctx, media, transcript, transcription.String(KeyTranscriptSource))
			},
		)
		if !transcriptRes.Success() {
			return failStep(StepTranscriptDB, transcriptRes)
		}
		return nil
	})
	g3.Go(func() error {
		analysisRes = o.runStep(fctx, StepAnalysisDB, nil,
			RetryOptions{Attempts: o.attempts, Delay: o.delay},
			func(ctx context.Context) Result { return o.memory.StoreAnalysis(ctx, media, combined) },
		)
		if !analysisRes.Success() {
			return failStep(StepAnalysisDB, analysisRes)
		}
		return nil
	})
	for _, aux := range []struct {
		name  string
		store AuxiliaryStore
	}{
		{StepGraph, o.graph},
		{StepContinual, o.continual},
	} {
		if aux.store == nil {
			continue
		}
		aux := aux
		g3.Go(func() error {
			res := o.runStep(fctx, aux.name, nil,
				RetryOptions{Attempts: o.attempts, Delay: o.delay},
				func(ctx context.Context) Result { return aux.store.Run(ctx, media, combined) },
			)
			if !res.Success() {
				warnMu.Lock()
				out.Warnings = append(out.Warnings, aux.name+": "+res.Err())
				warnMu.Unlock()
				logging.WithContext(fctx, o.logger).Warn("auxiliary memory store failed",
					logging.String(logging.FieldStep, aux.name),
					logging.String("error_message", res.Err()),
				)
			}
			return nil
		})
	}
	g3.Go(func() error {
		notifyRes = o.runStep(fctx, StepNotify, nil,
			RetryOptions{Attempts: o.attempts, Delay: o.delay},
			func(ctx context.Context) Result { return o.publishRunSummary(ctx, media, combined) },
		)
		if !notifyRes.Success() {
			return failStep(StepNotify, notifyRes)
		}
		return nil
	})
	if err := g3.Wait(); err != nil {
		out.Memory = mergedPtr(transcriptRes, analysisRes)
		out.Notification = &notifyRes
		return finish(withStepError(out, err))
	}
	out.Memory = mergedPtr(transcriptRes, analysisRes)
	out.Notification = &notifyRes

	out.Status = RunStatusSuccess
	return finish(out)
}

// transcribeWithFallback runs primary transcription; when the failure
// matches the engine-unavailable signature it degrades to a provider
// transcript, then to a transcript synthesized from title/description
// metadata. Any other failure stands as-is.
func (o *Orchestrator) transcribeWithFallback(ctx context.Context, media MediaInfo) Result {
	primary := o.runStep(ctx, StepTranscribe,
		map[string]any{"local_path": media.LocalPath},
		RetryOptions{Attempts: o.attempts, Delay: o.delay, RateLimited: true},
		func(ctx context.Context) Result { return o.transcriber.Run(ctx, media.LocalPath) },
	)
	if primary.Success() || !services.IsEngineUnavailable(primary.Err()) {
		return primary
	}

	logger := logging.WithContext(ctx, o.logger)
	logger.Warn("transcription engine unavailable; attempting degraded fallback",
		logging.String(logging.FieldEventType, "transcription_fallback"),
		logging.String("error_message", primary.Err()),
	)

	if o.provider != nil {
		text, err := o.provider.Fetch(ctx, media.SourceURL)
		if err != nil {
			logger.Debug("provider transcript fetch failed", logging.Error(err))
		} else if strings.TrimSpace(text) != "" {
			o.sink.Count("transcription_fallback", 1, "provider")
			return Degraded(
				F(KeyTranscript, text),
				F(KeyTranscriptSource, "provider"),
			)
		}
	}

	synthesized := synthesizeTranscript(media)
	if synthesized == "" {
		return primary
	}
	o.sink.Count("transcription_fallback", 1, "metadata")
	return Degraded(
		F(KeyTranscript, synthesized),
		F(KeyTranscriptSource, "metadata"),
	)
}

// synthesizeTranscript builds a minimal stand-in transcript from download
// metadata. Empty when there is nothing to build from.
func synthesizeTranscript(media MediaInfo) string {
	parts := make([]string, 0, 2)
	if title := strings.TrimSpace(media.Title); title != "" {
		parts = append(parts, title)
	}
	if desc := strings.TrimSpace(media.Description); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, ". ")
}

// runStep executes one step through the middleware chain and retry executor.
func (o *Orchestrator) runStep(ctx context.Context, name string, args map[string]any, opts RetryOptions, fn StepFunc) Result {
	ctx = services.WithStep(ctx, name)
	step := newStepContext(name, args, o)
	ctx = o.chain.Before(ctx, step)
	logger := logging.WithContext(ctx, o.logger)

	o.sink.Count("step_requests", 1, name)
	logger.Debug("step started", logging.String(logging.FieldEventType, "step_start"))

	result, hardErr := o.executor.Execute(ctx, name, fn, opts)
	step.Result = result
	step.Err = hardErr
	o.sink.Observe("step_duration", time.Since(step.StartedAt), name)

	switch {
	case hardErr != nil:
		o.sink.Count("step_failures", 1, name)
		logger.Error("step raised a hard failure",
			logging.String(logging.FieldEventType, "step_panic"),
			logging.Error(hardErr),
		)
		o.chain.Error(ctx, step)
	case !result.Success():
		o.sink.Count("step_failures", 1, name)
		logger.Error("step failed",
			logging.String(logging.FieldEventType, "step_failure"),
			logging.String("error_message", result.Err()),
		)
		o.chain.After(ctx, step)
	default:
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Duration("elapsed", time.Since(step.StartedAt)),
		}
		if status := result.CustomStatus(); status != "" {
			attrs = append(attrs, logging.String("custom_status", string(status)))
		}
		logger.Info("step completed", logging.Args(attrs...)...)
		o.chain.After(ctx, step)
	}
	return step.Result
}

// charge applies the per-step budget cost exactly once, outside the retry
// loop, so retries never double-charge.
func (o *Orchestrator) charge(lease *budget.Lease, task string) (Result, bool) {
	if err := lease.Charge(task, stepCost); err != nil {
		o.sink.Count("budget_rejected", 1, task)
		return Fail(err.Error()), false
	}
	return Result{}, true
}

func (o *Orchestrator) publishRunSummary(ctx context.Context, media MediaInfo, combined Result) Result {
	payload := notifications.Payload{
		"title":     media.Title,
		"url":       media.SourceURL,
		"video_id":  media.VideoID,
		"platform":  media.Platform,
		"sentiment": combined.String(KeySentiment),
		"summary":   combined.String(KeySummary),
	}
	if keywords, ok := combined.Get(KeyKeywords); ok {
		payload["keywords"] = keywords
	}
	if fallacies, ok := combined.Get(KeyFallacies); ok {
		payload["fallacies"] = fallacies
	}
	if perspectives, ok := combined.Get(KeyPerspectives); ok {
		payload["perspectives"] = perspectives
	}
	if err := o.notifier.Publish(ctx, notifications.EventRunCompleted, payload); err != nil {
		return Fail("publish run summary: " + err.Error())
	}
	return Ok()
}

func (o *Orchestrator) notifyFailure(ctx context.Context, out RunResult) {
	err := o.notifier.Publish(ctx, notifications.EventRunFailed, notifications.Payload{
		"step":  out.Step,
		"error": out.Error,
	})
	if err != nil {
		logging.WithContext(ctx, o.logger).Debug("failure notification not delivered", logging.Error(err))
	}
}

func withStepError(out RunResult, err error) RunResult {
	var tagged *stepError
	if errors.As(err, &tagged) {
		return failRun(out, tagged.step, tagged.result)
	}
	out.Step = "pipeline"
	out.Error = err.Error()
	return out
}

func mergedPtr(a, b Result) *Result {
	merged := a.Merge(b)
	return &merged
}
