// main package for the speech-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/speech-service/internal/cache"
	"github.com/book-expert/speech-service/internal/config"
	"github.com/book-expert/speech-service/internal/core"
	"github.com/book-expert/speech-service/internal/objectstore"
	"github.com/book-expert/speech-service/internal/server"
	"github.com/book-expert/speech-service/internal/speech"
	"github.com/book-expert/speech-service/internal/tts"
	"github.com/book-expert/speech-service/internal/worker"
)

const (
	bootstrapLogFile = "speech-service-bootstrap.log"
	serviceLogFile   = "speech-service.log"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "speech-service",
		Short:         "Serve cached text-to-speech audio over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to a TOML configuration file (defaults to the central configurator)")

	return cmd
}

func loadConfig(configPath string, bootstrapLog *logger.Logger) (*config.Config, error) {
	if configPath != "" {
		bootstrapLog.Info("Loading configuration from %s", configPath)

		return config.LoadFile(configPath)
	}

	return config.Load(bootstrapLog)
}

func run(ctx context.Context, configPath string) error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration
	cfg, err := loadConfig(configPath, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(ctx, cfg, log)
}

// serve wires the service together and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	var natsConnection *nats.Conn

	if cfg.NATS.Enabled {
		conn, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		defer conn.Close()

		natsConnection = conn
	}

	audioStore, err := newAudioStore(cfg, natsConnection)
	if err != nil {
		return err
	}

	synthesizer, err := tts.NewSynthesizer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	defaults := core.Defaults{
		Language: cfg.Speech.DefaultLanguage,
		Voice:    cfg.Speech.DefaultVoice,
		Encoding: core.ParseEncoding(cfg.Speech.DefaultEncoding),
	}

	resolver := speech.NewResolver(cache.NewMemoryCache(), audioStore, synthesizer, log)

	var speechWorker *worker.NatsWorker

	if natsConnection != nil {
		speechWorker, err = newSpeechWorker(cfg, natsConnection, resolver, defaults, log)
		if err != nil {
			return err
		}
	}

	srv := server.NewServer(resolver, defaults, log)
	srv.Addr = cfg.ListenAddress()
	srv.StaticDir = cfg.Server.StaticDir

	err = srv.Open()
	if err != nil {
		return err
	}

	log.System("Speech service initialized (provider: %s, storage: %s)", cfg.Speech.Provider, cfg.Speech.Storage)

	group, groupCtx := errgroup.WithContext(ctx)

	if speechWorker != nil {
		group.Go(func() error {
			return speechWorker.Run(groupCtx)
		})
	}

	if cfg.Speech.WarmupFile != "" {
		warmer := speech.NewWarmer(resolver, defaults, cfg.Speech.WarmupWorkers, log)

		group.Go(func() error {
			warmErr := warmer.WarmFile(groupCtx, cfg.Speech.WarmupFile)
			if warmErr != nil {
				log.Warn("Cache warmup incomplete: %v", warmErr)
			}

			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), cfg.ShutdownTimeout())
		defer cancel()

		log.Info("Shutting down HTTP server")

		return srv.Close(shutdownCtx)
	})

	return group.Wait()
}

func newAudioStore(cfg *config.Config, natsConnection *nats.Conn) (core.ObjectStore, error) {
	if cfg.Speech.Storage != config.StorageNATS {
		store, err := objectstore.NewLocalStore(cfg.Speech.CacheDir)
		if err != nil {
			return nil, err
		}

		return store, nil
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return nil, err
	}

	return store, nil
}

func newSpeechWorker(
	cfg *config.Config,
	natsConnection *nats.Conn,
	resolver *speech.Resolver,
	defaults core.Defaults,
	log *logger.Logger,
) (*worker.NatsWorker, error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	textStore, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return nil, err
	}

	return worker.NewNatsWorker(
		natsConnection, cfg.NATS.SpeechRequestSubject, textStore, resolver, defaults, log,
	), nil
}

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
