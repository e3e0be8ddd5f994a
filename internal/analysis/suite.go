package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"loom/internal/logging"
	"loom/internal/pipeline"
)

const (
	keywordLimit     = 10
	claimLimit       = 8
	fallacyLimit     = 5
	perspectiveLimit = 3
)

// Fallacy is one detected logical fallacy.
type Fallacy struct {
	Type        string `json:"type"`
	Excerpt     string `json:"excerpt"`
	Explanation string `json:"explanation"`
}

// Perspective is one synthesized alternative viewpoint.
type Perspective struct {
	Viewpoint string `json:"viewpoint"`
	Rationale string `json:"rationale"`
}

// Suite bundles the three analysis collaborators around one chat client.
// A nil client switches every collaborator to heuristic mode, whose Results
// are tagged uncertain.
type Suite struct {
	client *Client
	logger *slog.Logger
}

// NewSuite builds the analysis suite. client may be nil.
func NewSuite(client *Client, logger *slog.Logger) *Suite {
	return &Suite{
		client: client,
		logger: logging.NewComponentLogger(logger, "analysis"),
	}
}

// Analyzer returns the sentiment/keywords/claims collaborator.
func (s *Suite) Analyzer() pipeline.Analyzer { return analyzerStep{s} }

// FallacyDetector returns the fallacy detection collaborator.
func (s *Suite) FallacyDetector() pipeline.FallacyDetector { return fallacyStep{s} }

// PerspectiveSynthesizer returns the perspective synthesis collaborator.
func (s *Suite) PerspectiveSynthesizer() pipeline.PerspectiveSynthesizer { return perspectiveStep{s} }

type analyzerStep struct{ suite *Suite }

func (a analyzerStep) Run(ctx context.Context, text string) pipeline.Result {
	return a.suite.analyze(ctx, text)
}

type fallacyStep struct{ suite *Suite }

func (f fallacyStep) Run(ctx context.Context, text string) pipeline.Result {
	return f.suite.detectFallacies(ctx, text)
}

type perspectiveStep struct{ suite *Suite }

func (p perspectiveStep) Run(ctx context.Context, text string, analysis pipeline.Result) pipeline.Result {
	return p.suite.synthesizePerspectives(ctx, text, analysis)
}

type analysisPayload struct {
	Sentiment string   `json:"sentiment"`
	Keywords  []string `json:"keywords"`
	Claims    []string `json:"claims"`
	Summary   string   `json:"summary"`
}

func (s *Suite) analyze(ctx context.Context, text string) pipeline.Result {
	if strings.TrimSpace(text) == "" {
		return pipeline.Fail("validation error: analysis: empty transcript")
	}
	if s.client == nil {
		return s.heuristicAnalysis(ctx, text)
	}

	content, err := s.client.Complete(ctx, analysisPrompt, text)
	if err != nil {
		return failFromClientError("analysis", err)
	}
	var payload analysisPayload
	if decodeErr := json.Unmarshal([]byte(extractJSON(content)), &payload); decodeErr != nil {
		logging.WithContext(ctx, s.logger).Warn("unparseable analysis answer; using heuristics",
			logging.Error(decodeErr),
		)
		return s.heuristicAnalysis(ctx, text)
	}
	return pipeline.Ok(
		pipeline.F(pipeline.KeySentiment, normalizeSentiment(payload.Sentiment)),
		pipeline.F(pipeline.KeyKeywords, capList(payload.Keywords, keywordLimit)),
		pipeline.F(pipeline.KeyClaims, capList(payload.Claims, claimLimit)),
		pipeline.F(pipeline.KeySummary, strings.TrimSpace(payload.Summary)),
	)
}

func (s *Suite) heuristicAnalysis(ctx context.Context, text string) pipeline.Result {
	logging.WithContext(ctx, s.logger).Debug("running heuristic analysis")
	claims := heuristicClaims(text, claimLimit)
	return pipeline.OkWith(pipeline.StatusUncertain,
		pipeline.F(pipeline.KeySentiment, heuristicSentiment(text)),
		pipeline.F(pipeline.KeyKeywords, heuristicKeywords(text, keywordLimit)),
		pipeline.F(pipeline.KeyClaims, claims),
		pipeline.F(pipeline.KeySummary, heuristicSummary(text)),
	)
}

type fallacyPayload struct {
	Fallacies []Fallacy `json:"fallacies"`
}

func (s *Suite) detectFallacies(ctx context.Context, text string) pipeline.Result {
	if strings.TrimSpace(text) == "" {
		return pipeline.Fail("validation error: fallacy_detection: empty transcript")
	}
	if s.client == nil {
		return pipeline.OkWith(pipeline.StatusUncertain,
			pipeline.F(pipeline.KeyFallacies, heuristicFallacies(text, fallacyLimit)),
		)
	}

	content, err := s.client.Complete(ctx, fallacyPrompt, text)
	if err != nil {
		return failFromClientError("fallacy_detection", err)
	}
	var payload fallacyPayload
	if decodeErr := json.Unmarshal([]byte(extractJSON(content)), &payload); decodeErr != nil {
		logging.WithContext(ctx, s.logger).Warn("unparseable fallacy answer; using heuristics",
			logging.Error(decodeErr),
		)
		return pipeline.OkWith(pipeline.StatusUncertain,
			pipeline.F(pipeline.KeyFallacies, heuristicFallacies(text, fallacyLimit)),
		)
	}
	if payload.Fallacies == nil {
		payload.Fallacies = []Fallacy{}
	}
	return pipeline.Ok(pipeline.F(pipeline.KeyFallacies, payload.Fallacies))
}

type perspectivePayload struct {
	Perspectives []Perspective `json:"perspectives"`
}

func (s *Suite) synthesizePerspectives(ctx context.Context, text string, analysis pipeline.Result) pipeline.Result {
	if strings.TrimSpace(text) == "" {
		return pipeline.Fail("validation error: perspective_synthesis: empty transcript")
	}
	claims := claimsFrom(analysis)
	if s.client == nil {
		return pipeline.OkWith(pipeline.StatusUncertain,
			pipeline.F(pipeline.KeyPerspectives, heuristicPerspectives(claims, perspectiveLimit)),
		)
	}

	prompt := text
	if len(claims) > 0 {
		prompt = "Claims:\n- " + strings.Join(claims, "\n- ") + "\n\nTranscript:\n" + text
	}
	content, err := s.client.Complete(ctx, perspectivePrompt, prompt)
	if err != nil {
		return failFromClientError("perspective_synthesis", err)
	}
	var payload perspectivePayload
	if decodeErr := json.Unmarshal([]byte(extractJSON(content)), &payload); decodeErr != nil {
		logging.WithContext(ctx, s.logger).Warn("unparseable perspective answer; using heuristics",
			logging.Error(decodeErr),
		)
		return pipeline.OkWith(pipeline.StatusUncertain,
			pipeline.F(pipeline.KeyPerspectives, heuristicPerspectives(claims, perspectiveLimit)),
		)
	}
	if payload.Perspectives == nil {
		payload.Perspectives = []Perspective{}
	}
	return pipeline.Ok(pipeline.F(pipeline.KeyPerspectives, payload.Perspectives))
}

// failFromClientError carries the HTTP status into the Result so the retry
// executor can classify 4xx as permanent and 429 as rate limited.
func failFromClientError(step string, err error) pipeline.Result {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return pipeline.Fail(step+": "+err.Error(),
			pipeline.F(pipeline.KeyStatusCode, apiErr.StatusCode),
		)
	}
	return pipeline.Fail(step + ": " + err.Error())
}

func claimsFrom(analysis pipeline.Result) []string {
	raw, ok := analysis.Get(pipeline.KeyClaims)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		claims := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				claims = append(claims, s)
			}
		}
		return claims
	default:
		return nil
	}
}

func normalizeSentiment(sentiment string) string {
	sentiment = strings.ToLower(strings.TrimSpace(sentiment))
	switch sentiment {
	case "positive", "negative", "neutral", "mixed":
		return sentiment
	default:
		return "neutral"
	}
}

func capList(items []string, limit int) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	if len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}
