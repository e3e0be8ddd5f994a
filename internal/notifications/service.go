package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"loom/internal/config"
)

const userAgent = "Loom-Go/0.1.0"

// Event identifies the pipeline moment a notification describes.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries the structured fields rendered into the message body.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by a Discord webhook when
// configured. When no webhook URL is configured, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	webhook := strings.TrimSpace(cfg.Notifications.DiscordWebhook)
	if webhook == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &discordService{
		endpoint:   webhook,
		client:     client,
		sendRuns:   cfg.Notifications.Runs,
		sendErrors: cfg.Notifications.Errors,
	}
}

// Noop returns a Service that silently accepts every notification.
func Noop() Service { return noopService{} }

type discordService struct {
	endpoint   string
	client     *http.Client
	sendRuns   bool
	sendErrors bool
}

func (d *discordService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventRunStarted, EventRunCompleted:
		if !d.sendRuns {
			return nil
		}
	case EventRunFailed:
		if !d.sendErrors {
			return nil
		}
	}
	return d.send(ctx, event, payload)
}

func (d *discordService) TestNotification(ctx context.Context) error {
	return d.send(ctx, EventTest, Payload{"message": "notification system test"})
}

func eventTitle(event Event) string {
	switch event {
	case EventRunStarted:
		return "Loom - Run Started"
	case EventRunCompleted:
		return "Loom - Run Complete"
	case EventRunFailed:
		return "Loom - Run Failed"
	case EventTest:
		return "Loom - Test"
	default:
		return "Loom - " + string(event)
	}
}

// discordMessage mirrors the webhook body Discord expects: a content line
// plus a single embed carrying the payload fields.
type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title  string         `json:"title,omitempty"`
	Color  int            `json:"color,omitempty"`
	Fields []discordField `json:"fields,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const (
	colorSuccess = 0x2ECC71
	colorFailure = 0xE74C3C
	colorNeutral = 0x3498DB
)

func (d *discordService) send(ctx context.Context, event Event, payload Payload) error {
	if d == nil || d.client == nil {
		return nil
	}

	color := colorNeutral
	switch event {
	case EventRunCompleted:
		color = colorSuccess
	case EventRunFailed:
		color = colorFailure
	}

	embed := discordEmbed{Title: eventTitle(event), Color: color}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := renderValue(payload[k])
		if value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:   k,
			Value:  value,
			Inline: len(value) <= 40,
		})
	}

	body, err := json.Marshal(discordMessage{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("encode discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// renderValue flattens a payload value into embed-field text. Discord caps
// field values at 1024 characters.
func renderValue(v any) string {
	var text string
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		text = strings.TrimSpace(value)
	case []string:
		text = strings.Join(value, ", ")
	case fmt.Stringer:
		text = value.String()
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			text = fmt.Sprintf("%v", value)
		} else {
			text = string(encoded)
		}
	}
	if len(text) > 1024 {
		text = text[:1021] + "..."
	}
	return text
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) TestNotification(context.Context) error        { return nil }
