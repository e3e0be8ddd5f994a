package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("archive payload")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("verified copy: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFileVerified(filepath.Join(dir, "gone.bin"), filepath.Join(dir, "dst.bin"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "dst.bin")); statErr == nil {
		t.Fatal("destination must not exist after failed copy")
	}
}
