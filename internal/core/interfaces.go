// Package core defines the domain types and interfaces for the speech service.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Synthesizer defines the interface for a text-to-speech provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// Cache maps a CacheKey to the name of a stored audio object.
type Cache interface {
	Get(key string) (string, bool)
	// PutIfAbsent stores value under key unless an entry already exists.
	// It returns the value held by the cache after the call and whether
	// this call inserted it.
	PutIfAbsent(key, value string) (string, bool)
}
