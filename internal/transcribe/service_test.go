package transcribe_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/pipeline"
	"loom/internal/services"
	"loom/internal/transcribe"
)

func writeMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abc123.mp4")
	if err := os.WriteFile(path, []byte("fake media"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestRunTranscribesViaWhisper(t *testing.T) {
	media := writeMedia(t)
	svc := transcribe.NewService(transcribe.Config{Model: "base", Language: "en-US"})

	var gotArgs []string
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		payload := map[string]any{
			"text":     " hello world ",
			"language": "en",
			"segments": []map[string]any{
				{"start": 0.0, "end": 2.5, "text": "hello world"},
			},
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		jsonPath := strings.TrimSuffix(media, ".mp4") + ".json"
		return os.WriteFile(jsonPath, data, 0o644)
	})

	res := svc.Run(context.Background(), media)
	if !res.Success() {
		t.Fatalf("expected success, got %q", res.Err())
	}
	if got := res.String(pipeline.KeyTranscript); got != "hello world" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
	if got := res.String(pipeline.KeyLanguage); got != "en" {
		t.Fatalf("expected language, got %q", got)
	}
	if got := res.String(pipeline.KeyTranscriptSource); got != "whisper" {
		t.Fatalf("expected whisper source, got %q", got)
	}

	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--model base") {
		t.Fatalf("expected model flag, args: %v", gotArgs)
	}
	if !strings.Contains(joined, "--language en") {
		t.Fatalf("expected normalized language flag, args: %v", gotArgs)
	}
}

func TestRunMissingBinaryMatchesEngineUnavailable(t *testing.T) {
	media := writeMedia(t)
	svc := transcribe.NewService(transcribe.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return exec.ErrNotFound
	})

	res := svc.Run(context.Background(), media)
	if res.Success() {
		t.Fatal("expected failure")
	}
	if !services.IsEngineUnavailable(res.Err()) {
		t.Fatalf("missing binary must match the engine-unavailable signature, got %q", res.Err())
	}
}

func TestRunRejectsMissingMedia(t *testing.T) {
	svc := transcribe.NewService(transcribe.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("runner must not run for missing media")
		return nil
	})

	res := svc.Run(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"))
	if res.Success() {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Err(), "validation error") {
		t.Fatalf("expected validation marker, got %q", res.Err())
	}
	if services.IsEngineUnavailable(res.Err()) {
		t.Fatal("missing media must not look like an unavailable engine")
	}
}

func TestRunFailsOnEmptyTranscript(t *testing.T) {
	media := writeMedia(t)
	svc := transcribe.NewService(transcribe.Config{})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		jsonPath := strings.TrimSuffix(media, ".mp4") + ".json"
		return os.WriteFile(jsonPath, []byte(`{"text":"","segments":[]}`), 0o644)
	})

	res := svc.Run(context.Background(), media)
	if res.Success() {
		t.Fatal("expected failure for empty transcript")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"en-US", "en"},
		{"eng", "en"},
		{"pt-BR", "pt"},
		{"", ""},
		{"zz-not-a-tag!!", ""},
	}
	for _, tc := range tests {
		if got := transcribe.NormalizeLanguage(tc.in); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProviderClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://example.com/watch?v=abc123" {
			t.Fatalf("unexpected url parameter %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"transcript": "caption text"})
	}))
	defer server.Close()

	client := transcribe.NewProviderClient(server.URL)
	text, err := client.Fetch(context.Background(), "https://example.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "caption text" {
		t.Fatalf("expected caption text, got %q", text)
	}
}

func TestProviderClientNotFoundMeansNoTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := transcribe.NewProviderClient(server.URL)
	text, err := client.Fetch(context.Background(), "https://example.com/watch?v=missing")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestNewProviderClientEmptyURLIsNil(t *testing.T) {
	if client := transcribe.NewProviderClient("   "); client != nil {
		t.Fatal("expected nil client without an endpoint")
	}
}
