package tts

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/polly"

	"github.com/book-expert/speech-service/internal/core"
)

// MaxPollyCharacters is the maximum number of billed characters Polly accepts per request.
const MaxPollyCharacters = 3000

// ErrRegionEmpty is returned when a Polly client is created without a region.
var ErrRegionEmpty = errors.New("aws region required")

// ErrTextTooLong is returned when the text exceeds MaxPollyCharacters.
var ErrTextTooLong = errors.New("text exceeds polly character limit")

// PollyOptions configures a PollyClient.
type PollyOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// VoiceID replaces request voices that are not Polly voice ids.
	VoiceID  string
	Endpoint string
	Timeout  time.Duration
}

// PollyClient synthesizes speech with AWS Polly.
type PollyClient struct {
	svc     *polly.Polly
	voiceID string
}

// NewPollyClient creates a Polly client. Static credentials are used when
// given, otherwise the default AWS credential chain applies.
func NewPollyClient(opts PollyOptions) (*PollyClient, error) {
	if opts.Region == "" {
		return nil, ErrRegionEmpty
	}

	awsConfig := &aws.Config{
		Region:     aws.String(opts.Region),
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}

	if opts.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	if opts.Endpoint != "" {
		awsConfig.Endpoint = aws.String(opts.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &PollyClient{
		svc:     polly.New(sess),
		voiceID: opts.VoiceID,
	}, nil
}

// Synthesize converts req to audio with Polly. Rate and pitch are expressed as SSML prosody.
func (p *PollyClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Text() == "" {
		return nil, ErrTextEmpty
	}

	if count := utf8.RuneCountInString(req.Text()); count > MaxPollyCharacters {
		return nil, fmt.Errorf("%w: %d characters", ErrTextTooLong, count)
	}

	text, textType := PollyText(req)

	input := &polly.SynthesizeSpeechInput{
		OutputFormat: aws.String(req.Encoding().Profile().PollyFormat),
		Text:         aws.String(text),
		TextType:     aws.String(textType),
		VoiceId:      aws.String(p.voiceFor(req)),
	}

	resp, err := p.svc.SynthesizeSpeechWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("polly synthesis failed: %w", err)
	}
	defer resp.AudioStream.Close()

	audioData, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("failed to read polly audio stream: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

// voiceFor keeps Polly voice ids and swaps Google-style names
// (e.g. "sv-SE-Wavenet-A") for the configured voice.
func (p *PollyClient) voiceFor(req core.SynthesisRequest) string {
	voice := req.Voice()
	if voice == "" || strings.Contains(voice, "-") {
		return p.voiceID
	}

	return voice
}

// PollyText returns the text to send and its Polly text type. Requests with a
// rate or pitch are wrapped in SSML prosody; others are sent as plain text.
func PollyText(req core.SynthesisRequest) (string, string) {
	rate, hasRate := req.Rate()
	pitch, hasPitch := req.Pitch()

	if !hasRate && !hasPitch {
		return req.Text(), polly.TextTypeText
	}

	var attrs []string

	if hasRate {
		// Speaking rate is a multiplier; 1.0 is the voice's normal speed.
		attrs = append(attrs, `rate="`+strconv.Itoa(int(math.Round(rate*100)))+`%"`)
	}

	if hasPitch {
		// Pitch is in semitones; Polly takes a relative percentage.
		percent := int(math.Round((math.Pow(2, pitch/12) - 1) * 100))
		attrs = append(attrs, `pitch="`+signed(percent)+`%"`)
	}

	ssml := "<speak><prosody " + strings.Join(attrs, " ") + ">" +
		html.EscapeString(req.Text()) + "</prosody></speak>"

	return ssml, polly.TextTypeSsml
}

func signed(value int) string {
	if value >= 0 {
		return "+" + strconv.Itoa(value)
	}

	return strconv.Itoa(value)
}
