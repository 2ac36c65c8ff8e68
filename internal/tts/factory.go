package tts

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/speech-service/internal/config"
	"github.com/book-expert/speech-service/internal/core"
)

// ErrUnsupportedProvider is returned for provider names the factory does not know.
var ErrUnsupportedProvider = errors.New("unsupported tts provider")

// NewSynthesizer returns the provider selected by cfg.Speech.Provider.
func NewSynthesizer(cfg *config.Config) (core.Synthesizer, error) {
	switch cfg.Speech.Provider {
	case config.ProviderGoogle:
		timeout := time.Duration(cfg.Google.TimeoutSeconds) * time.Second

		return NewGoogleClient(cfg.Google.Endpoint, cfg.Google.APIKey, timeout), nil
	case config.ProviderPolly:
		return NewPollyClient(PollyOptions{
			Region:          cfg.Polly.Region,
			AccessKeyID:     cfg.Polly.AccessKeyID,
			SecretAccessKey: cfg.Polly.SecretAccessKey,
			VoiceID:         cfg.Polly.VoiceID,
			Endpoint:        cfg.Polly.Endpoint,
			Timeout:         time.Duration(cfg.Polly.TimeoutSeconds) * time.Second,
		})
	case config.ProviderStub:
		return NewStubSynthesizer(), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedProvider, cfg.Speech.Provider)
	}
}
