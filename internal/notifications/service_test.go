package notifications_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"loom/internal/config"
	"loom/internal/notifications"
)

func TestNewServiceReturnsNoopWhenWebhookMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.DiscordWebhook = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestDiscordServiceFormatsPayloads(t *testing.T) {
	var captured struct {
		contentType string
		body        []byte
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		captured.contentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		captured.body = body
		_ = r.Body.Close()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.DiscordWebhook = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.Runs = true

	svc := notifications.NewService(&cfg)
	payload := notifications.Payload{
		"title":    "Interstellar",
		"url":      "https://example.com/watch?v=abc123",
		"keywords": []string{"space", "time"},
	}
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, payload); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}

	if captured.contentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", captured.contentType)
	}

	var message struct {
		Embeds []struct {
			Title  string `json:"title"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	if err := json.Unmarshal(captured.body, &message); err != nil {
		t.Fatalf("decode webhook body: %v", err)
	}
	if len(message.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(message.Embeds))
	}
	embed := message.Embeds[0]
	if embed.Title != "Loom - Run Complete" {
		t.Fatalf("unexpected embed title %q", embed.Title)
	}
	fields := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["title"] != "Interstellar" {
		t.Fatalf("expected title field, got %q", fields["title"])
	}
	if fields["keywords"] != "space, time" {
		t.Fatalf("expected joined keywords, got %q", fields["keywords"])
	}
}

func TestDiscordServiceSuppressesDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.DiscordWebhook = server.URL
	cfg.Notifications.Runs = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventRunStarted,
		notifications.EventRunCompleted,
		notifications.EventRunFailed,
	}
	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestDiscordServiceSurfacesHTTPFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook token", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.DiscordWebhook = server.URL
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventRunFailed, notifications.Payload{"step": "download"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
