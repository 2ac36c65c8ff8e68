// Package server_test tests the HTTP surface of the speech service.
package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-service/internal/cache"
	"github.com/book-expert/speech-service/internal/core"
	"github.com/book-expert/speech-service/internal/objectstore"
	"github.com/book-expert/speech-service/internal/server"
	"github.com/book-expert/speech-service/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockProvider = errors.New("mock provider unavailable")

// countingSynthesizer returns fixed audio and counts invocations.
type countingSynthesizer struct {
	calls      atomic.Int32
	shouldFail bool
	lastReq    atomic.Pointer[core.SynthesisRequest]
}

func (c *countingSynthesizer) Synthesize(_ context.Context, req core.SynthesisRequest) ([]byte, error) {
	c.calls.Add(1)
	c.lastReq.Store(&req)

	if c.shouldFail {
		return nil, errMockProvider
	}

	return []byte("audio for " + req.Text()), nil
}

// panickingResolver simulates a handler bug.
type panickingResolver struct{}

func (panickingResolver) Resolve(context.Context, core.SynthesisRequest) (*speech.Result, error) {
	panic("boom")
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func setupServer(t *testing.T, synthesizer *countingSynthesizer) (*httptest.Server, *cache.MemoryCache) {
	t.Helper()

	log := newTestLogger(t)

	store, err := objectstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	memoryCache := cache.NewMemoryCache()
	resolver := speech.NewResolver(memoryCache, store, synthesizer, log)

	srv := server.NewServer(resolver, core.Defaults{}, log)
	srv.StaticDir = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srv.StaticDir, "robots.txt"), []byte("User-agent: *"), 0o600))

	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)

	return httpServer, memoryCache
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

func TestSpeech_DefaultsThenCached(t *testing.T) {
	t.Parallel()

	synthesizer := &countingSynthesizer{}
	httpServer, memoryCache := setupServer(t, synthesizer)

	resp, body := get(t, httpServer.URL+"/speech?text=hej")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/ogg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Equal(t, "audio for hej", string(body))
	assert.Equal(t, int32(1), synthesizer.calls.Load())
	assert.Equal(t, 1, memoryCache.Len())

	lastReq := synthesizer.lastReq.Load()
	require.NotNil(t, lastReq)
	assert.Equal(t, "sv-SE", lastReq.Language())
	assert.Equal(t, "sv-SE-Wavenet-A", lastReq.Voice())
	assert.Equal(t, core.GenderFemale, lastReq.Gender())

	resp, repeated := get(t, httpServer.URL+"/speech?text=hej")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, body, repeated)
	assert.Equal(t, int32(1), synthesizer.calls.Load())
}

func TestSpeech_ContentTypePerEncoding(t *testing.T) {
	t.Parallel()

	httpServer, _ := setupServer(t, &countingSynthesizer{})

	expected := map[string]string{
		"OPUS": "audio/ogg",
		"MP3":  "audio/mpeg",
		"PCM":  "audio/wav",
		"WMA":  "audio/ogg",
	}

	for encoding, contentType := range expected {
		resp, _ := get(t, httpServer.URL+"/speech?text=hej&encoding="+encoding)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, contentType, resp.Header.Get("Content-Type"), encoding)
	}
}

func TestSpeech_AllParametersReachProvider(t *testing.T) {
	t.Parallel()

	synthesizer := &countingSynthesizer{}
	httpServer, _ := setupServer(t, synthesizer)

	resp, _ := get(t, httpServer.URL+
		"/speech?text=hello&language=en-US&voice=en-US-Wavenet-D&gender=Male&encoding=MP3&rate=1.5&pitch=-2")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lastReq := synthesizer.lastReq.Load()
	require.NotNil(t, lastReq)
	assert.Equal(t, "hello", lastReq.Text())
	assert.Equal(t, "en-US", lastReq.Language())
	assert.Equal(t, "en-US-Wavenet-D", lastReq.Voice())
	assert.Equal(t, core.GenderMale, lastReq.Gender())
	assert.Equal(t, core.EncodingMP3, lastReq.Encoding())

	rate, ok := lastReq.Rate()
	require.True(t, ok)
	assert.InEpsilon(t, 1.5, rate, 0.0001)
}

func TestSpeech_ProviderFailure(t *testing.T) {
	t.Parallel()

	httpServer, memoryCache := setupServer(t, &countingSynthesizer{shouldFail: true})

	resp, body := get(t, httpServer.URL+"/speech?text=hej")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, 0, memoryCache.Len())
}

func TestSpeech_PanicIsMaskedAsServerError(t *testing.T) {
	t.Parallel()

	srv := server.NewServer(panickingResolver{}, core.Defaults{}, newTestLogger(t))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/speech?text=hej", http.NoBody)

	srv.Handler().ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Empty(t, recorder.Body.String())
}

func TestSecurityHeaderOnEveryResponse(t *testing.T) {
	t.Parallel()

	httpServer, _ := setupServer(t, &countingSynthesizer{shouldFail: true})

	for _, path := range []string{"/", "/health", "/speech?text=hej", "/robots.txt", "/missing"} {
		resp, _ := get(t, httpServer.URL+path)
		assert.Equal(t,
			"max-age=31536000; includeSubDomains; preload",
			resp.Header.Get("Strict-Transport-Security"),
			path,
		)
	}
}

func TestIndexHealthAndStatic(t *testing.T) {
	t.Parallel()

	httpServer, _ := setupServer(t, &countingSynthesizer{})

	resp, body := get(t, httpServer.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	resp, body = get(t, httpServer.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = get(t, httpServer.URL+"/robots.txt")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User-agent: *", string(body))

	resp, _ = get(t, httpServer.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_OpenClose(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)
	srv := server.NewServer(panickingResolver{}, core.Defaults{}, log)
	srv.Addr = "127.0.0.1:0"

	require.NoError(t, srv.Open())

	resp, body := get(t, srv.URL()+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Close(ctx))
}
