// Package tts_test tests the text-to-speech providers.
package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/speech-service/internal/core"
	"github.com/book-expert/speech-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudio = "OggS-fake-opus-audio"

func newTestRequest(params core.Params) core.SynthesisRequest {
	return core.Normalize(params, core.Defaults{})
}

// createGoogleServer creates a mock text:synthesize endpoint that records the last payload.
func createGoogleServer(t *testing.T, received *map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/v1/text:synthesize", request.URL.Path)
			assert.Equal(t, "test-key", request.URL.Query().Get("key"))
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			err := json.NewDecoder(request.Body).Decode(received)
			assert.NoError(t, err)

			responseWriter.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(responseWriter).Encode(map[string]string{
				"audioContent": base64.StdEncoding.EncodeToString([]byte(testAudio)),
			})
		},
	))
}

func TestGoogleClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	var received map[string]any

	server := createGoogleServer(t, &received)
	defer server.Close()

	client := tts.NewGoogleClient(server.URL, "test-key", 5*time.Second)

	audio, err := client.Synthesize(context.Background(), newTestRequest(core.Params{
		Text:     "hej",
		Gender:   "male",
		Encoding: "MP3",
		Rate:     "1.5",
		Pitch:    "-3",
	}))
	require.NoError(t, err)
	assert.Equal(t, testAudio, string(audio))

	assert.Equal(t, map[string]any{"text": "hej"}, received["input"])
	assert.Equal(t, map[string]any{
		"languageCode": "sv-SE",
		"name":         "sv-SE-Wavenet-A",
		"ssmlGender":   "MALE",
	}, received["voice"])
	assert.Equal(t, map[string]any{
		"audioEncoding": "MP3",
		"speakingRate":  1.5,
		"pitch":         -3.0,
	}, received["audioConfig"])
}

func TestNewGoogleRequest_OmitsAbsentRateAndPitch(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(tts.NewGoogleRequest(newTestRequest(core.Params{Text: "hej"})))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"input": {"text": "hej"},
		"voice": {"languageCode": "sv-SE", "name": "sv-SE-Wavenet-A", "ssmlGender": "FEMALE"},
		"audioConfig": {"audioEncoding": "OGG_OPUS"}
	}`, string(payload))
}

func TestGoogleClient_Synthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := tts.NewGoogleClient("http://127.0.0.1:1", "", time.Second)

	_, err := client.Synthesize(context.Background(), newTestRequest(core.Params{}))
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}

func TestGoogleClient_Synthesize_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "application/json")
			responseWriter.WriteHeader(http.StatusForbidden)
			_, _ = responseWriter.Write([]byte(
				`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`,
			))
		},
	))
	defer server.Close()

	client := tts.NewGoogleClient(server.URL, "bad-key", 5*time.Second)

	_, err := client.Synthesize(context.Background(), newTestRequest(core.Params{Text: "hej"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestGoogleClient_Synthesize_RawError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			http.Error(responseWriter, "upstream exploded", http.StatusBadGateway)
		},
	))
	defer server.Close()

	client := tts.NewGoogleClient(server.URL, "", 5*time.Second)

	_, err := client.Synthesize(context.Background(), newTestRequest(core.Params{Text: "hej"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestGoogleClient_Synthesize_EmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			_, _ = responseWriter.Write([]byte(`{"audioContent":""}`))
		},
	))
	defer server.Close()

	client := tts.NewGoogleClient(server.URL, "", 5*time.Second)

	_, err := client.Synthesize(context.Background(), newTestRequest(core.Params{Text: "hej"}))
	require.ErrorIs(t, err, tts.ErrReceivedEmptyAudio)
}

func TestGoogleClient_Synthesize_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(_ http.ResponseWriter, request *http.Request) {
			select {
			case <-request.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	))
	defer server.Close()

	client := tts.NewGoogleClient(server.URL, "", 50*time.Millisecond)

	_, err := client.Synthesize(context.Background(), newTestRequest(core.Params{Text: "hej"}))
	require.Error(t, err)
}
