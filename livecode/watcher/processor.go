package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/livecode/livecode/patch"
)

// ArtifactApplier applies a patch artifact file to the live program.
type ArtifactApplier interface {
	ApplyArtifact(ctx context.Context, path string) (*patch.Result, error)
}

// ArtifactProcessor implements BatchProcessor for patch artifacts. Each
// debounced batch is fingerprinted and applied unless its content was already
// seen. Batches are handled one at a time.
type ArtifactProcessor struct {
	applier       ArtifactApplier
	fingerprinter Fingerprinter
	logger        zerolog.Logger
	onResult      func(*patch.Result, error)

	mu   sync.Mutex
	last map[string]*Fingerprint

	// Statistics
	applied    int64
	duplicates int64
	failed     int64
	busy       time.Duration
}

// ProcessorOption configures an ArtifactProcessor.
type ProcessorOption func(*ArtifactProcessor)

// WithFingerprinter replaces the SHA256 fingerprinter.
func WithFingerprinter(f Fingerprinter) ProcessorOption {
	return func(p *ArtifactProcessor) { p.fingerprinter = f }
}

// WithResultHandler is called after every apply attempt.
func WithResultHandler(fn func(*patch.Result, error)) ProcessorOption {
	return func(p *ArtifactProcessor) { p.onResult = fn }
}

// NewArtifactProcessor creates a processor feeding applier
func NewArtifactProcessor(applier ArtifactApplier, logger zerolog.Logger, opts ...ProcessorOption) *ArtifactProcessor {
	p := &ArtifactProcessor{
		applier:       applier,
		fingerprinter: NewContentFingerprinter(),
		logger:        logger.With().Str("component", "artifact-processor").Logger(),
		last:          make(map[string]*Fingerprint),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prime records the current content of path so an unchanged artifact left
// over from an earlier session is not applied again.
func (p *ArtifactProcessor) Prime(path string) error {
	fp, err := p.fingerprinter.Fingerprint(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last[path] = fp
	p.mu.Unlock()
	return nil
}

// Process handles one debounced batch. Only the final state of each path
// matters, so the events themselves are used to pick the paths.
func (p *ArtifactProcessor) Process(ctx context.Context, events []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() { p.busy += time.Since(start) }()

	var errs []error
	seen := make(map[string]bool, 1)
	for _, event := range events {
		if seen[event.Path] {
			continue
		}
		seen[event.Path] = true
		if err := p.processPath(ctx, event.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *ArtifactProcessor) processPath(ctx context.Context, path string) error {
	fp, err := p.fingerprinter.Fingerprint(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Debug().Str("path", path).Msg("Artifact removed, waiting for the next write")
		delete(p.last, path)
		return nil
	}
	if err != nil {
		return err
	}
	if p.fingerprinter.Same(p.last[path], fp) {
		p.duplicates++
		p.logger.Debug().Str("path", path).Str("hash", fp.Hash).Msg("Artifact unchanged, skipping")
		return nil
	}
	// a rejected artifact is remembered too so it is not retried until it changes
	p.last[path] = fp

	res, err := p.applier.ApplyArtifact(ctx, path)
	if p.onResult != nil {
		p.onResult(res, err)
	}
	if err != nil {
		p.failed++
		return fmt.Errorf("applying %s: %w", path, err)
	}
	if !res.Skipped {
		p.applied++
	}
	return nil
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Applied    int64
	Duplicates int64
	Failed     int64
	Busy       time.Duration
}

// GetStats returns processing statistics
func (p *ArtifactProcessor) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Applied: p.applied, Duplicates: p.duplicates, Failed: p.failed, Busy: p.busy}
}

// Close is a no-op; the processor owns no goroutines.
func (p *ArtifactProcessor) Close() error {
	return nil
}
