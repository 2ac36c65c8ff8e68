// Package tts provides the text-to-speech providers behind core.Synthesizer.
//
// GoogleClient talks to the Google Cloud Text-to-Speech REST API, PollyClient
// to AWS Polly, and StubSynthesizer answers locally without any provider.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
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
	apiSynthesize = "/v1/text:synthesize"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Error messages.
const (
	errFmtServiceErrorWithStatus = "google tts error (%s): %s (status: %s)"
	errFmtServiceNonOKStatus     = "google tts returned non-OK status: %s, body: %s"
)

var (
	// ErrTextEmpty is returned when synthesis is requested for empty text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrReceivedEmptyAudio is returned when the provider answers without audio.
	ErrReceivedEmptyAudio = errors.New("received empty audio data")
)

// GoogleClient is a client for the Google Cloud Text-to-Speech REST API.
type GoogleClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type googleInput struct {
	Text string `json:"text"`
}

type googleVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	SSMLGender   string `json:"ssmlGender"`
}

type googleAudioConfig struct {
	AudioEncoding string   `json:"audioEncoding"`
	SpeakingRate  *float64 `json:"speakingRate,omitempty"`
	Pitch         *float64 `json:"pitch,omitempty"`
}

// GoogleRequest is the JSON payload of a text:synthesize call.
type GoogleRequest struct {
	Input       googleInput       `json:"input"`
	Voice       googleVoice       `json:"voice"`
	AudioConfig googleAudioConfig `json:"audioConfig"`
}

type googleResponse struct {
	AudioContent string `json:"audioContent"`
}

// googleErrorResponse is the error envelope returned by Google APIs.
type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGoogleClient creates a client for the API at baseURL
// (e.g. "https://texttospeech.googleapis.com"). The timeout applies to every call.
func NewGoogleClient(baseURL, apiKey string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewGoogleRequest builds the text:synthesize payload for req.
func NewGoogleRequest(req core.SynthesisRequest) GoogleRequest {
	payload := GoogleRequest{
		Input: googleInput{Text: req.Text()},
		Voice: googleVoice{
			LanguageCode: req.Language(),
			Name:         req.Voice(),
			SSMLGender:   string(req.Gender()),
		},
		AudioConfig: googleAudioConfig{
			AudioEncoding: req.Encoding().Profile().GoogleEncoding,
		},
	}

	if rate, ok := req.Rate(); ok {
		payload.AudioConfig.SpeakingRate = &rate
	}

	if pitch, ok := req.Pitch(); ok {
		payload.AudioConfig.Pitch = &pitch
	}

	return payload
}

// Synthesize sends a text:synthesize request and returns the decoded audio.
func (c *GoogleClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Text() == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(NewGoogleRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.synthesizeURL(),
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to google tts at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseGoogleError(resp)
	}

	var result googleResponse

	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode synthesis response: %w", err)
	}

	audioData, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio content: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

func (c *GoogleClient) synthesizeURL() string {
	endpoint := c.baseURL + apiSynthesize
	if c.apiKey == "" {
		return endpoint
	}

	return endpoint + "?" + url.Values{"key": []string{c.apiKey}}.Encode()
}

// parseGoogleError decodes Google's error envelope, falling back to the raw body.
func parseGoogleError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp googleErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Error.Message != "" {
		return fmt.Errorf(errFmtServiceErrorWithStatus,
			resp.Status, errorResp.Error.Message, errorResp.Error.Status)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
