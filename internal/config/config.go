// Package config provides the configuration structure for the speech-service.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Provider names.
const (
	ProviderGoogle = "google"
	ProviderPolly  = "polly"
	ProviderStub   = "stub"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageNATS  = "nats"
)

// Default values.
const (
	defaultAddress                = "0.0.0.0"
	defaultPort                   = "3000"
	defaultStaticDir              = "public"
	defaultShutdownTimeoutSeconds = 10
	defaultCacheDir               = "speech-cache"
	defaultLanguage               = "sv-SE"
	defaultVoice                  = "sv-SE-Wavenet-A"
	defaultEncoding               = "OPUS"
	defaultGoogleEndpoint         = "https://texttospeech.googleapis.com"
	defaultTimeoutSeconds         = 30
	defaultPollyVoiceID           = "Astrid"
	defaultSpeechRequestSubject   = "speech.requested"
	defaultAudioBucket            = "SPEECH_AUDIO"
	defaultTextBucket             = "TEXT_FILES"
	defaultWarmupWorkers          = 4
)

var (
	// ErrUnknownProvider indicates an unsupported speech.provider value.
	ErrUnknownProvider = errors.New("unknown speech provider")
	// ErrUnknownStorage indicates an unsupported speech.storage value.
	ErrUnknownStorage = errors.New("unknown speech storage")
	// ErrNATSRequired indicates that NATS storage was selected without enabling NATS.
	ErrNATSRequired = errors.New("nats storage requires nats.enabled")
	// ErrNATSStorageRequired indicates that the NATS worker was enabled over local
	// storage, whose audio keys NATS consumers cannot download.
	ErrNATSStorageRequired = errors.New("nats.enabled requires speech.storage = \"nats\"")
	// ErrPollyRegionEmpty indicates that the polly provider has no region.
	ErrPollyRegionEmpty = errors.New("polly provider requires polly.region")
)

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Address                string `toml:"address"                  env:"ADDRESS"`
	Port                   string `toml:"port"                     env:"PORT"`
	StaticDir              string `toml:"static_dir"               env:"STATIC_DIR"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// SpeechConfig holds the resolver and request default configuration.
type SpeechConfig struct {
	Provider        string `toml:"provider"         env:"SPEECH_PROVIDER"`
	Storage         string `toml:"storage"          env:"SPEECH_STORAGE"`
	CacheDir        string `toml:"cache_dir"        env:"SPEECH_CACHE_DIR"`
	DefaultLanguage string `toml:"default_language"`
	DefaultVoice    string `toml:"default_voice"`
	DefaultEncoding string `toml:"default_encoding"`
	WarmupFile      string `toml:"warmup_file"      env:"SPEECH_WARMUP_FILE"`
	WarmupWorkers   int    `toml:"warmup_workers"`
}

// GoogleConfig holds the Google Cloud Text-to-Speech client configuration.
type GoogleConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"         env:"GOOGLE_API_KEY"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PollyConfig holds the AWS Polly client configuration.
type PollyConfig struct {
	Region          string `toml:"region"            env:"AWS_REGION"`
	AccessKeyID     string `toml:"access_key_id"     env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	VoiceID         string `toml:"voice_id"`
	Endpoint        string `toml:"endpoint"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	Enabled                bool   `toml:"enabled"                   env:"NATS_ENABLED"`
	URL                    string `toml:"url"                       env:"NATS_URL"`
	SpeechRequestSubject   string `toml:"speech_request_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	TextObjectStoreBucket  string `toml:"text_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir" env:"LOGS_DIR"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Speech SpeechConfig `toml:"speech"`
	Google GoogleConfig `toml:"google"`
	Polly  PollyConfig  `toml:"polly"`
	NATS   NATSConfig   `toml:"nats"`
	Paths  PathsConfig  `toml:"paths"`
}

// Load loads the configuration through the central configurator, then applies
// environment overrides and defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a local TOML file, then applies
// environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML data, then applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every empty field with its default value.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.Address, defaultAddress)
	setDefault(&c.Server.Port, defaultPort)
	setDefault(&c.Server.StaticDir, defaultStaticDir)
	setDefaultInt(&c.Server.ShutdownTimeoutSeconds, defaultShutdownTimeoutSeconds)

	setDefault(&c.Speech.Provider, ProviderGoogle)

	if c.NATS.Enabled {
		setDefault(&c.Speech.Storage, StorageNATS)
	} else {
		setDefault(&c.Speech.Storage, StorageLocal)
	}

	setDefault(&c.Speech.CacheDir, defaultCacheDir)
	setDefault(&c.Speech.DefaultLanguage, defaultLanguage)
	setDefault(&c.Speech.DefaultVoice, defaultVoice)
	setDefault(&c.Speech.DefaultEncoding, defaultEncoding)
	setDefaultInt(&c.Speech.WarmupWorkers, defaultWarmupWorkers)

	setDefault(&c.Google.Endpoint, defaultGoogleEndpoint)
	setDefaultInt(&c.Google.TimeoutSeconds, defaultTimeoutSeconds)

	setDefault(&c.Polly.VoiceID, defaultPollyVoiceID)
	setDefaultInt(&c.Polly.TimeoutSeconds, defaultTimeoutSeconds)

	setDefault(&c.NATS.URL, "nats://127.0.0.1:4222")
	setDefault(&c.NATS.SpeechRequestSubject, defaultSpeechRequestSubject)
	setDefault(&c.NATS.AudioObjectStoreBucket, defaultAudioBucket)
	setDefault(&c.NATS.TextObjectStoreBucket, defaultTextBucket)

	setDefault(&c.Paths.BaseLogsDir, os.TempDir())
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Speech.Provider {
	case ProviderGoogle, ProviderStub:
	case ProviderPolly:
		if c.Polly.Region == "" {
			return ErrPollyRegionEmpty
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownProvider, c.Speech.Provider)
	}

	switch c.Speech.Storage {
	case StorageLocal:
		if c.NATS.Enabled {
			return ErrNATSStorageRequired
		}
	case StorageNATS:
		if !c.NATS.Enabled {
			return ErrNATSRequired
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownStorage, c.Speech.Storage)
	}

	return nil
}

// ListenAddress returns the host:port the HTTP server binds to.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Address, c.Server.Port)
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}
