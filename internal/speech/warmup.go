package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/book-expert/logger"
	"golang.org/x/sync/errgroup"

	"github.com/book-expert/speech-service/internal/core"
)

// Static errors.
var (
	ErrWarmupPathEmpty = errors.New("warmup path cannot be empty")
	ErrNoTextsFound    = errors.New("no texts found")
)

const (
	logFmtWarmupStart  = "Warming speech cache with %d texts using %d workers"
	logFmtWarmupFailed = "Failed to warm text %d: %v"
	logFmtWarmupDone   = "Warmed speech cache: %d/%d texts resolved"
	errFmtTextFailed   = "text %d failed: %w"
)

// Warmer pre-populates the cache by resolving a list of texts with default parameters.
type Warmer struct {
	resolver *Resolver
	defaults core.Defaults
	workers  int
	log      *logger.Logger
}

// NewWarmer creates a Warmer that resolves at most workers texts concurrently.
func NewWarmer(resolver *Resolver, defaults core.Defaults, workers int, log *logger.Logger) *Warmer {
	if workers < 1 {
		workers = 1
	}

	return &Warmer{
		resolver: resolver,
		defaults: defaults,
		workers:  workers,
		log:      log,
	}
}

// WarmFile reads a JSON array of strings from path and warms the cache with it.
func (w *Warmer) WarmFile(ctx context.Context, path string) error {
	if path == "" {
		return ErrWarmupPathEmpty
	}

	texts, err := readTextsFile(path)
	if err != nil {
		return err
	}

	return w.Warm(ctx, texts)
}

// Warm resolves every text. Failures are logged and do not stop the remaining
// texts; the last failure is returned. Once ctx is cancelled no further texts
// are started and the returned error wraps ctx.Err().
func (w *Warmer) Warm(ctx context.Context, texts []string) error {
	w.log.Info(logFmtWarmupStart, len(texts), w.workers)

	var (
		group     errgroup.Group
		resolved  atomic.Int32
		lastError atomic.Pointer[error]
	)

	group.SetLimit(w.workers)

	for index, text := range texts {
		if ctx.Err() != nil {
			break
		}

		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			req := core.Normalize(core.Params{Text: text}, w.defaults)

			_, err := w.resolver.Resolve(ctx, req)
			if err != nil {
				wrapped := fmt.Errorf(errFmtTextFailed, index+1, err)
				lastError.Store(&wrapped)
				w.log.Error(logFmtWarmupFailed, index+1, err)

				return nil
			}

			resolved.Add(1)

			return nil
		})
	}

	_ = group.Wait()

	w.log.Info(logFmtWarmupDone, resolved.Load(), len(texts))

	if ctx.Err() != nil {
		return fmt.Errorf("warmup stopped: %w", ctx.Err())
	}

	if errPtr := lastError.Load(); errPtr != nil {
		return *errPtr
	}

	return nil
}

// readTextsFile reads and parses a JSON file containing an array of texts.
func readTextsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read warmup file: %w", err)
	}

	var texts []string

	err = json.Unmarshal(data, &texts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warmup JSON: %w", err)
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTextsFound, path)
	}

	return texts, nil
}
