package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TranscriptRecord is a stored transcript row.
type TranscriptRecord struct {
	ID         int64
	VideoID    string
	Title      string
	Platform   string
	SourceURL  string
	Transcript string
	Source     string
	CreatedAt  string
}

// AnalysisRecord is a stored analysis row; Payload carries the full JSON.
type AnalysisRecord struct {
	ID        int64
	VideoID   string
	Sentiment string
	Summary   string
	Payload   string
	CreatedAt string
}

// SaveTranscript upserts the transcript for (video, source). Re-running a
// pipeline refreshes the stored text instead of duplicating rows.
func (s *Store) SaveTranscript(ctx context.Context, rec TranscriptRecord) error {
	if rec.VideoID == "" {
		return errors.New("memory: transcript video id required")
	}
	if rec.Source == "" {
		rec.Source = "whisper"
	}
	return s.execWithRetry(ctx, `
INSERT INTO transcripts (video_id, title, platform, source_url, transcript, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (video_id, source) DO UPDATE SET
    title = excluded.title,
    platform = excluded.platform,
    source_url = excluded.source_url,
    transcript = excluded.transcript,
    created_at = excluded.created_at`,
		rec.VideoID, rec.Title, rec.Platform, rec.SourceURL, rec.Transcript, rec.Source, now())
}

// TranscriptByVideoID returns the newest transcript for the video.
func (s *Store) TranscriptByVideoID(ctx context.Context, videoID string) (*TranscriptRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
SELECT id, video_id, title, platform, source_url, transcript, source, created_at
FROM transcripts WHERE video_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, videoID)

	var rec TranscriptRecord
	err := row.Scan(&rec.ID, &rec.VideoID, &rec.Title, &rec.Platform, &rec.SourceURL,
		&rec.Transcript, &rec.Source, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	return &rec, nil
}

// SaveAnalysis appends an analysis row for the video.
func (s *Store) SaveAnalysis(ctx context.Context, rec AnalysisRecord) error {
	if rec.VideoID == "" {
		return errors.New("memory: analysis video id required")
	}
	return s.execWithRetry(ctx, `
INSERT INTO analyses (video_id, sentiment, summary, payload, created_at)
VALUES (?, ?, ?, ?, ?)`,
		rec.VideoID, rec.Sentiment, rec.Summary, rec.Payload, now())
}

// AnalysesByVideoID returns analyses for the video, newest first.
func (s *Store) AnalysesByVideoID(ctx context.Context, videoID string) ([]AnalysisRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, video_id, sentiment, summary, payload, created_at
FROM analyses WHERE video_id = ? ORDER BY created_at DESC, id DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.VideoID, &rec.Sentiment, &rec.Summary, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Edge is one subject-predicate-object triple in the graph memory.
type Edge struct {
	Subject   string
	Predicate string
	Object    string
}

// AddEdges inserts graph edges, ignoring triples that already exist.
func (s *Store) AddEdges(ctx context.Context, edges []Edge) error {
	for _, edge := range edges {
		if edge.Subject == "" || edge.Predicate == "" || edge.Object == "" {
			continue
		}
		err := s.execWithRetry(ctx, `
INSERT INTO graph_edges (subject, predicate, object, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (subject, predicate, object) DO NOTHING`,
			edge.Subject, edge.Predicate, edge.Object, now())
		if err != nil {
			return err
		}
	}
	return nil
}

// EdgesBySubject returns all edges rooted at the subject.
func (s *Store) EdgesBySubject(ctx context.Context, subject string) ([]Edge, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
SELECT subject, predicate, object FROM graph_edges WHERE subject = ? ORDER BY id`, subject)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var edge Edge
		if err := rows.Scan(&edge.Subject, &edge.Predicate, &edge.Object); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// AddObservation appends a continual-memory note for the video.
func (s *Store) AddObservation(ctx context.Context, videoID, note string) error {
	if videoID == "" {
		return errors.New("memory: observation video id required")
	}
	return s.execWithRetry(ctx, `
INSERT INTO observations (video_id, note, created_at) VALUES (?, ?, ?)`,
		videoID, note, now())
}

// ObservationCount reports the number of stored observations for the video.
func (s *Store) ObservationCount(ctx context.Context, videoID string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM observations WHERE video_id = ?", videoID).Scan(&count)
	return count, err
}
