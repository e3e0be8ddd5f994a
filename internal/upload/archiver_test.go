package upload_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/pipeline"
	"loom/internal/upload"
)

func TestRunDisabledSkips(t *testing.T) {
	archiver := upload.NewArchiver(false, t.TempDir(), "")
	res := archiver.Run(context.Background(), "/tmp/whatever.mp4", "youtube")
	if !res.Success() || !res.Skipped() {
		t.Fatalf("expected skip, got success=%v status=%q", res.Success(), res.CustomStatus())
	}
}

func TestRunArchivesIntoPlatformDirectory(t *testing.T) {
	staging := t.TempDir()
	library := t.TempDir()
	source := filepath.Join(staging, "abc123.mp4")
	if err := os.WriteFile(source, []byte("media payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	archiver := upload.NewArchiver(true, library, "https://media.example.com")
	res := archiver.Run(context.Background(), source, "youtube")
	if !res.Success() {
		t.Fatalf("expected success, got %q", res.Err())
	}

	dest := res.String(pipeline.KeyLocalPath)
	if !strings.HasPrefix(dest, filepath.Join(library, "youtube")) {
		t.Fatalf("expected platform subdirectory, got %q", dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(data) != "media payload" {
		t.Fatal("archived content mismatch")
	}

	raw, ok := res.Get(pipeline.KeyLinks)
	if !ok {
		t.Fatal("expected share links")
	}
	links, ok := raw.([]string)
	if !ok || len(links) != 1 || links[0] != "https://media.example.com/youtube/abc123.mp4" {
		t.Fatalf("unexpected links %v", raw)
	}
}

func TestRunMissingSourceFails(t *testing.T) {
	archiver := upload.NewArchiver(true, t.TempDir(), "")
	res := archiver.Run(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), "youtube")
	if res.Success() {
		t.Fatal("expected failure for missing source")
	}
}

func TestRunWithoutLibraryDirIsConfigurationError(t *testing.T) {
	archiver := upload.NewArchiver(true, "", "")
	res := archiver.Run(context.Background(), "/tmp/file.mp4", "youtube")
	if res.Success() {
		t.Fatal("expected failure")
	}
	if pipeline.Classify(res) != pipeline.ClassPermanent {
		t.Fatalf("configuration errors must classify permanent, got %q", pipeline.Classify(res))
	}
}
