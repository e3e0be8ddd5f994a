package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loom/internal/pipeline"
	"loom/internal/services"
)

// Pipeline collaborator adapters. The Store itself satisfies
// pipeline.MemoryStore; GraphStore and ContinualStore wrap it for the
// optional auxiliary slots.

// StoreTranscript persists the run's transcript.
func (s *Store) StoreTranscript(ctx context.Context, media pipeline.MediaInfo, transcript, source string) pipeline.Result {
	err := s.SaveTranscript(ctx, TranscriptRecord{
		VideoID:    media.VideoID,
		Title:      media.Title,
		Platform:   media.Platform,
		SourceURL:  media.SourceURL,
		Transcript: transcript,
		Source:     source,
	})
	if err != nil {
		return pipeline.Fail(services.Wrap(nil, "transcript_storage", "save", "persist transcript", err).Error())
	}
	return pipeline.Ok(pipeline.F(pipeline.KeyVideoID, media.VideoID))
}

// StoreAnalysis persists the combined analysis Result as JSON.
func (s *Store) StoreAnalysis(ctx context.Context, media pipeline.MediaInfo, analysis pipeline.Result) pipeline.Result {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return pipeline.Fail(services.Wrap(services.ErrValidation, "analysis_memory", "encode", "unencodable analysis", err).Error())
	}
	err = s.SaveAnalysis(ctx, AnalysisRecord{
		VideoID:   media.VideoID,
		Sentiment: analysis.String(pipeline.KeySentiment),
		Summary:   analysis.String(pipeline.KeySummary),
		Payload:   string(payload),
	})
	if err != nil {
		return pipeline.Fail(services.Wrap(nil, "analysis_memory", "save", "persist analysis", err).Error())
	}
	return pipeline.Ok(pipeline.F(pipeline.KeyVideoID, media.VideoID))
}

// GraphStore projects each run into subject-predicate-object edges.
type GraphStore struct {
	store *Store
}

// NewGraphStore wraps the store for the graph memory slot.
func NewGraphStore(store *Store) *GraphStore {
	return &GraphStore{store: store}
}

func (g *GraphStore) Run(ctx context.Context, media pipeline.MediaInfo, analysis pipeline.Result) pipeline.Result {
	subject := media.VideoID
	if subject == "" {
		return pipeline.Fail("validation error: graph_memory: media has no video id")
	}

	edges := make([]Edge, 0, 8)
	if media.Platform != "" {
		edges = append(edges, Edge{Subject: subject, Predicate: "published_on", Object: media.Platform})
	}
	for _, keyword := range stringList(analysis, pipeline.KeyKeywords) {
		edges = append(edges, Edge{Subject: subject, Predicate: "mentions", Object: keyword})
	}
	for _, claim := range stringList(analysis, pipeline.KeyClaims) {
		edges = append(edges, Edge{Subject: subject, Predicate: "claims", Object: claim})
	}
	if len(edges) == 0 {
		return pipeline.Skip("no graph edges to record")
	}

	if err := g.store.AddEdges(ctx, edges); err != nil {
		return pipeline.Fail(services.Wrap(nil, "graph_memory", "save", "persist edges", err).Error())
	}
	return pipeline.Ok(pipeline.F("edges", len(edges)))
}

// ContinualStore appends a compact observation per run, building up a
// longitudinal record of what the pipeline has seen.
type ContinualStore struct {
	store *Store
}

// NewContinualStore wraps the store for the continual memory slot.
func NewContinualStore(store *Store) *ContinualStore {
	return &ContinualStore{store: store}
}

func (c *ContinualStore) Run(ctx context.Context, media pipeline.MediaInfo, analysis pipeline.Result) pipeline.Result {
	if media.VideoID == "" {
		return pipeline.Fail("validation error: continual_memory: media has no video id")
	}

	sentiment := analysis.String(pipeline.KeySentiment)
	summary := strings.TrimSpace(analysis.String(pipeline.KeySummary))
	note := fmt.Sprintf("sentiment=%s title=%q", sentiment, media.Title)
	if summary != "" {
		note += " summary=" + summary
	}

	if err := c.store.AddObservation(ctx, media.VideoID, note); err != nil {
		return pipeline.Fail(services.Wrap(nil, "continual_memory", "save", "persist observation", err).Error())
	}
	return pipeline.Ok()
}

func stringList(res pipeline.Result, key string) []string {
	raw, ok := res.Get(key)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		return items
	default:
		return nil
	}
}
