package main

import "testing"

func TestRootHelpListsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--help"}, env.configPath)
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"process", "history", "config", "test-notify"} {
		requireContains(t, out, name)
	}
}

func TestHistoryReportsMissingVideo(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history", "vid-absent"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No stored data for vid-absent")
}

func TestNotifyWithoutWebhook(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "notification not sent")
}
