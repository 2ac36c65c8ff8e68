// Package client provides an HTTP client for the speech-service API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/speech-service/internal/core"
)

// API endpoints and paths.
const (
	apiSpeech = "/speech"
	apiHealth = "/health"
)

// ErrReceivedEmptyAudio is returned when the service answers without audio.
var ErrReceivedEmptyAudio = errors.New("received empty audio data")

// Client talks to a running speech-service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Speech is audio returned by the service.
type Speech struct {
	Audio    []byte
	MimeType string
	Cached   bool
}

// New creates a client for the service at baseURL (e.g. "http://localhost:3000").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Speech requests audio for params. Empty parameters are left to the service defaults.
func (c *Client) Speech(ctx context.Context, params core.Params) (*Speech, error) {
	query := url.Values{}
	setParam(query, "text", params.Text)
	setParam(query, "language", params.Language)
	setParam(query, "voice", params.Voice)
	setParam(query, "gender", params.Gender)
	setParam(query, "encoding", params.Encoding)
	setParam(query, "rate", params.Rate)
	setParam(query, "pitch", params.Pitch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiSpeech+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to speech service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech service returned non-OK status: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return &Speech{
		Audio:    audio,
		MimeType: resp.Header.Get("Content-Type"),
		Cached:   resp.Header.Get("X-Cache") == "HIT",
	}, nil
}

// HealthCheck verifies that the service is running.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func setParam(query url.Values, name, value string) {
	if value != "" {
		query.Set(name, value)
	}
}
