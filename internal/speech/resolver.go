// Package speech resolves synthesis requests to audio, serving repeated
// requests from the cache and synthesizing and storing new ones.
package speech

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/book-expert/speech-service/internal/core"
)

// Log formats.
const (
	logFmtCacheHit    = "Cache hit for %s audio %s (%s)"
	logFmtSynthesized = "Synthesized %s audio %s (%s)"
	logFmtLostRace    = "Cache key already mapped to %s, discarding %s"
)

// Result is the outcome of a resolution.
type Result struct {
	Audio    []byte
	MimeType string
	// AudioKey is the object name of the audio in the store.
	AudioKey string
	// Cached reports whether the audio came from the cache.
	Cached bool
}

// Resolver maps synthesis requests to stored audio.
type Resolver struct {
	cache       core.Cache
	store       core.ObjectStore
	synthesizer core.Synthesizer
	log         *logger.Logger
	group       singleflight.Group
}

// NewResolver creates a Resolver over the given cache, store and provider.
func NewResolver(
	cache core.Cache,
	store core.ObjectStore,
	synthesizer core.Synthesizer,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		cache:       cache,
		store:       store,
		synthesizer: synthesizer,
		log:         log,
	}
}

// Resolve returns the audio for req. On a cache miss the provider is invoked,
// the audio is stored under a fresh unique name and the mapping recorded.
// Concurrent misses for the same key share a single synthesis.
func (r *Resolver) Resolve(ctx context.Context, req core.SynthesisRequest) (*Result, error) {
	key := req.CacheKey()

	if audioKey, ok := r.cache.Get(key); ok {
		return r.load(ctx, req, audioKey)
	}

	value, err, _ := r.group.Do(key, func() (any, error) {
		// Synthesis runs to completion even if the caller that started it goes away.
		return r.synthesize(context.WithoutCancel(ctx), req)
	})
	if err != nil {
		return nil, err
	}

	result, ok := value.(*Result)
	if !ok {
		return nil, fmt.Errorf("unexpected resolution result type %T", value)
	}

	return result, nil
}

func (r *Resolver) load(ctx context.Context, req core.SynthesisRequest, audioKey string) (*Result, error) {
	audio, err := r.store.Download(ctx, audioKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached audio '%s': %w", audioKey, err)
	}

	r.log.Info(logFmtCacheHit, req.Encoding(), audioKey, humanize.Bytes(uint64(len(audio))))

	return &Result{
		Audio:    audio,
		MimeType: req.MimeType(),
		AudioKey: audioKey,
		Cached:   true,
	}, nil
}

func (r *Resolver) synthesize(ctx context.Context, req core.SynthesisRequest) (*Result, error) {
	key := req.CacheKey()

	// Another flight may have finished between the caller's lookup and this one.
	if audioKey, ok := r.cache.Get(key); ok {
		return r.load(ctx, req, audioKey)
	}

	audio, err := r.synthesizer.Synthesize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	audioKey := generateName(req.Encoding().Profile().Extension)

	err = r.store.Upload(ctx, audioKey, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to store audio '%s': %w", audioKey, err)
	}

	stored, inserted := r.cache.PutIfAbsent(key, audioKey)
	if !inserted {
		r.log.Warn(logFmtLostRace, stored, audioKey)

		return r.load(ctx, req, stored)
	}

	r.log.Info(logFmtSynthesized, req.Encoding(), audioKey, humanize.Bytes(uint64(len(audio))))

	return &Result{
		Audio:    audio,
		MimeType: req.MimeType(),
		AudioKey: audioKey,
		Cached:   false,
	}, nil
}

// generateName returns a unique object name that carries nothing from the request text.
func generateName(ext string) string {
	return uuid.NewString() + ext
}
