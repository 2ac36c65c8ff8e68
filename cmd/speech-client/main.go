// main package for the speech-client, a command-line client for the speech-service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/book-expert/speech-service/internal/client"
	"github.com/book-expert/speech-service/internal/core"
)

// Flag descriptions.
const (
	flagURLDesc     = "Base URL of the speech service"
	flagTextDesc    = "Text to convert to speech"
	flagOutputDesc  = "Output file path (extension follows the encoding when omitted)"
	flagHealthDesc  = "Check speech service health and exit"
	flagTimeoutDesc = "Request timeout"
)

// Error and log messages.
const (
	errTextRequired       = "--text must be provided"
	errFmtHealthCheck     = "Health check failed: %v"
	errFmtRequestFailed   = "Speech request failed: %v"
	logFmtRequesting      = "Requesting speech from %s"
	logFmtGenerated       = "Generated: %s (%s, %s, cached: %t)\n"
	msgServiceHealthy     = "Speech service is healthy"
	logFileName           = "speech-client.log"
	defaultServiceURL     = "http://localhost:3000"
	defaultOutputBaseName = "output"
	defaultRequestTimeout = 60 * time.Second
	outputFilePermissions = 0o600
)

var errMissingText = errors.New(errTextRequired)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	url     string
	output  string
	health  bool
	timeout time.Duration
	params  core.Params
}

func newRootCommand() *cobra.Command {
	var flags appFlags

	cmd := &cobra.Command{
		Use:           "speech-client",
		Short:         "Request speech audio from a speech-service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", defaultServiceURL, flagURLDesc)
	cmd.Flags().StringVarP(&flags.params.Text, "text", "t", "", flagTextDesc)
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", flagOutputDesc)
	cmd.Flags().StringVar(&flags.params.Encoding, "encoding", "", "Audio encoding (OPUS, MP3, PCM)")
	cmd.Flags().StringVar(&flags.params.Language, "language", "", "Language code, e.g. sv-SE")
	cmd.Flags().StringVar(&flags.params.Voice, "voice", "", "Voice name, e.g. sv-SE-Wavenet-A")
	cmd.Flags().StringVar(&flags.params.Gender, "gender", "", "Voice gender (male or female)")
	cmd.Flags().StringVar(&flags.params.Rate, "rate", "", "Speaking rate")
	cmd.Flags().StringVar(&flags.params.Pitch, "pitch", "", "Pitch in semitones")
	cmd.Flags().BoolVar(&flags.health, "health", false, flagHealthDesc)
	cmd.Flags().DurationVar(&flags.timeout, "timeout", defaultRequestTimeout, flagTimeoutDesc)

	return cmd
}

func run(ctx context.Context, flags appFlags) error {
	log, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() { _ = log.Close() }()

	speechClient := client.New(flags.url, flags.timeout)

	if flags.health {
		return handleHealthCheck(ctx, speechClient, log)
	}

	if flags.params.Text == "" {
		log.Error(errTextRequired)

		return errMissingText
	}

	log.Info(logFmtRequesting, flags.url)

	result, err := speechClient.Speech(ctx, flags.params)
	if err != nil {
		log.Error(errFmtRequestFailed, err)

		return fmt.Errorf(errFmtRequestFailed, err)
	}

	outputPath := OutputPath(flags.output, flags.params.Encoding)

	err = os.MkdirAll(filepath.Dir(outputPath), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	err = os.WriteFile(outputPath, result.Audio, outputFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	fmt.Printf(logFmtGenerated, outputPath, result.MimeType, humanize.Bytes(uint64(len(result.Audio))), result.Cached)

	return nil
}

// OutputPath returns output, or a default file name carrying the encoding's extension.
func OutputPath(output, encoding string) string {
	if output != "" {
		return output
	}

	return defaultOutputBaseName + core.ParseEncoding(encoding).Profile().Extension
}

func handleHealthCheck(ctx context.Context, speechClient *client.Client, log *logger.Logger) error {
	err := speechClient.HealthCheck(ctx)
	if err != nil {
		log.Error(errFmtHealthCheck, err)

		return fmt.Errorf(errFmtHealthCheck, err)
	}

	fmt.Println(msgServiceHealthy)

	return nil
}

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
