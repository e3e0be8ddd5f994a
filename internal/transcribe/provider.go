package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultProviderTimeout = 15 * time.Second

// ProviderClient fetches platform-supplied transcripts (captions) over HTTP.
// It is best effort: the pipeline consults it only when local transcription
// is unavailable.
type ProviderClient struct {
	baseURL    string
	httpClient *http.Client
}

// ProviderOption customizes the provider client.
type ProviderOption func(*ProviderClient)

// WithProviderHTTPClient overrides the default HTTP client.
func WithProviderHTTPClient(client *http.Client) ProviderOption {
	return func(p *ProviderClient) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// NewProviderClient constructs a provider transcript client. Returns nil when
// no endpoint is configured so callers can wire it straight into an optional
// collaborator slot.
func NewProviderClient(baseURL string, opts ...ProviderOption) *ProviderClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil
	}
	p := &ProviderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultProviderTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type providerResponse struct {
	Transcript string `json:"transcript"`
}

// Fetch retrieves the provider transcript for a media URL. An empty
// transcript with nil error means the provider has none.
func (p *ProviderClient) Fetch(ctx context.Context, mediaURL string) (string, error) {
	endpoint := p.baseURL + "?url=" + url.QueryEscape(mediaURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("provider transcript: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider transcript: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("provider transcript: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("provider transcript: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Some providers answer with the caption text directly.
		return strings.TrimSpace(string(body)), nil
	}
	return strings.TrimSpace(parsed.Transcript), nil
}
