// Package worker provides a NATS worker that answers speech requests with cached or synthesized audio.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/speech-service/internal/core"
	"github.com/book-expert/speech-service/internal/speech"
)

const handleMessageTimeout = 60 * time.Second

// ErrTextKeyEmpty indicates an event without a text object key.
var ErrTextKeyEmpty = errors.New("text key cannot be empty")

// Resolver resolves a synthesis request to audio.
type Resolver interface {
	Resolve(ctx context.Context, req core.SynthesisRequest) (*speech.Result, error)
}

// NatsWorker listens for TextProcessedEvent requests on a NATS subject and
// replies with an AudioChunkCreatedEvent naming the resolved audio object.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	textStore      core.ObjectStore
	resolver       Resolver
	defaults       core.Defaults
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	textStore core.ObjectStore,
	resolver Resolver,
	defaults core.Defaults,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		textStore:      textStore,
		resolver:       resolver,
		defaults:       defaults,
		log:            log,
	}
}

// Run subscribes and processes messages until ctx is cancelled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for speech requests on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	result, err := w.processSpeechJob(ctx, event)
	if err != nil {
		w.log.Error("Failed to process speech job for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   result.AudioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processSpeechJob downloads the text and resolves it to audio.
func (w *NatsWorker) processSpeechJob(ctx context.Context, event *events.TextProcessedEvent) (*speech.Result, error) {
	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	req := core.Normalize(core.Params{
		Text:  string(textData),
		Voice: event.Voice,
	}, w.defaults)

	result, err := w.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve speech: %w", err)
	}

	return result, nil
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func publishReplyEvent(msg *nats.Msg, replyEvent *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
