package tts

import (
	"context"

	"github.com/book-expert/speech-service/internal/core"
)

// StubSynthesizer answers every request with "hello <text>" and never calls a provider.
// It is meant for local development and smoke tests.
type StubSynthesizer struct{}

// NewStubSynthesizer creates a StubSynthesizer.
func NewStubSynthesizer() *StubSynthesizer {
	return &StubSynthesizer{}
}

// Synthesize returns the greeting bytes for req.
func (s *StubSynthesizer) Synthesize(_ context.Context, req core.SynthesisRequest) ([]byte, error) {
	return []byte("hello " + req.Text()), nil
}
