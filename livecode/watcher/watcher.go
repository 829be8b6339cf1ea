package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/livecode/livecode"
)

// DefaultConfig returns a default watcher configuration
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		DebounceDelay:    time.Duration(internal.DefaultDebounceMs) * time.Millisecond,
		MaxDebounceDelay: time.Duration(internal.DefaultMaxDebounceMs) * time.Millisecond,
		QueueCapacity:    internal.DefaultQueueCapacity,
		Logger:           logger,
	}
}

// WatchArtifact applies every new version of the artifact at path until ctx
// is done. Rejected patches are logged and the loop keeps running. The
// artifact's current content is treated as already applied.
func WatchArtifact(ctx context.Context, config Config, path string, applier ArtifactApplier, opts ...ProcessorOption) error {
	if config.DebounceDelay <= 0 {
		return fmt.Errorf("artifact watching requires a positive debounce delay, got %s", config.DebounceDelay)
	}

	processor := NewArtifactProcessor(applier, config.Logger, opts...)
	if err := processor.Prime(path); err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}

	w, err := NewWatcherWithProcessor(config, processor)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(ctx, []string{path}); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			w.logger.Debug().Err(err).Msg("Watcher error")
		}
	}
}
