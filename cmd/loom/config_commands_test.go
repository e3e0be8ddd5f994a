package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestConfigInitRefusesExistingFile(t *testing.T) {
	env := setupCLITestEnv(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	if err := os.WriteFile(target, []byte("log_level = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	_, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err == nil {
		t.Fatal("expected init to refuse existing file")
	}
	requireContains(t, err.Error(), "already exists")
}

func TestConfigShowRendersSettings(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "downloader.binary")
	requireContains(t, out, "yt-dlp")
	requireContains(t, out, "analysis.api_key")
}
