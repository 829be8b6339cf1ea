package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FSNotifyWatcher implements the Watcher interface using fsnotify
type FSNotifyWatcher struct {
	watcher   *fsnotify.Watcher
	eventChan chan Event
	errorChan chan error
	debouncer Debouncer
	processor BatchProcessor
	config    Config
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closeOnce sync.Once

	// watched file names by directory
	targets map[string]map[string]bool
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher
func NewFSNotifyWatcher(config Config) (*FSNotifyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = 1
	}

	w := &FSNotifyWatcher{
		watcher:   fsWatcher,
		eventChan: make(chan Event, config.QueueCapacity),
		errorChan: make(chan error, 10),
		config:    config,
		logger:    config.Logger.With().Str("component", "watcher").Logger(),
		targets:   make(map[string]map[string]bool),
	}

	if config.DebounceDelay > 0 {
		w.debouncer = NewDebouncer(config.DebounceDelay, config.MaxDebounceDelay, config.QueueCapacity)
	}

	return w, nil
}

// NewWatcherWithProcessor creates a watcher whose debounced batches go to processor
func NewWatcherWithProcessor(config Config, processor BatchProcessor) (*FSNotifyWatcher, error) {
	w, err := NewFSNotifyWatcher(config)
	if err != nil {
		return nil, err
	}
	w.SetProcessor(processor)
	return w, nil
}

// SetProcessor sets the processor for debounced batches
func (w *FSNotifyWatcher) SetProcessor(processor BatchProcessor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processor = processor
}

// Start begins watching the given files
func (w *FSNotifyWatcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("watcher already started")
	}

	for _, path := range paths {
		if err := w.addLocked(path); err != nil {
			return err
		}
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(2)
	go w.watchLoop()
	go w.processEvents()

	w.logger.Info().Strs("paths", paths).Msg("Watcher started")
	return nil
}

// Add adds files to watch
func (w *FSNotifyWatcher) Add(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		if err := w.addLocked(path); err != nil {
			return err
		}
	}
	return nil
}

// Remove stops watching files
func (w *FSNotifyWatcher) Remove(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		dir, name := filepath.Split(abs)
		dir = filepath.Clean(dir)
		names := w.targets[dir]
		delete(names, name)
		if len(names) == 0 {
			delete(w.targets, dir)
			if err := w.watcher.Remove(dir); err != nil {
				w.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove directory from watcher")
			}
		}
	}
	return nil
}

func (w *FSNotifyWatcher) addLocked(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir, name := filepath.Split(abs)
	dir = filepath.Clean(dir)

	if _, watched := w.targets[dir]; !watched {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		w.targets[dir] = make(map[string]bool)
	}
	w.targets[dir][name] = true
	return nil
}

func (w *FSNotifyWatcher) isTarget(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dir, name := filepath.Split(path)
	return w.targets[filepath.Clean(dir)][name]
}

// Events returns the event channel
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.eventChan
}

// Errors returns the error channel
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errorChan
}

// Close stops watching and cleans up resources
func (w *FSNotifyWatcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Unlock()

		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
		if w.debouncer != nil {
			w.debouncer.Close()
		}

		w.wg.Wait()

		w.mu.RLock()
		processor := w.processor
		w.mu.RUnlock()
		if processor != nil {
			if err := processor.Close(); err != nil {
				w.logger.Warn().Err(err).Msg("Error closing processor")
			}
		}

		close(w.eventChan)
		close(w.errorChan)
		w.logger.Info().Msg("Watcher closed")
	})
	return nil
}

func (w *FSNotifyWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			converted := w.convertEvent(event)
			if converted == nil || !w.isTarget(converted.Path) {
				continue
			}

			if w.debouncer != nil {
				w.debouncer.Add(*converted)
				continue
			}
			w.emit(*converted)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errorChan <- err:
			case <-w.ctx.Done():
				return
			default:
				w.logger.Warn().Err(err).Msg("Error channel full, dropping error")
			}
		}
	}
}

// processEvents handles debounced batches
func (w *FSNotifyWatcher) processEvents() {
	defer w.wg.Done()

	if w.debouncer == nil {
		return
	}

	for {
		select {
		case <-w.ctx.Done():
			return

		case events, ok := <-w.debouncer.Events():
			if !ok {
				return
			}

			w.mu.RLock()
			processor := w.processor
			w.mu.RUnlock()

			if processor == nil {
				for _, event := range events {
					w.emit(event)
				}
				continue
			}
			if err := processor.Process(w.ctx, events); err != nil {
				w.logger.Error().Err(err).Str("path", events[0].Path).Msg("Error processing events")
				select {
				case w.errorChan <- err:
				default:
				}
			}
		}
	}
}

func (w *FSNotifyWatcher) emit(event Event) {
	select {
	case w.eventChan <- event:
	case <-w.ctx.Done():
	default:
		w.logger.Warn().Str("path", event.Path).Msg("Event channel full, dropping event")
	}
}

// convertEvent converts fsnotify.Event to watcher.Event
func (w *FSNotifyWatcher) convertEvent(event fsnotify.Event) *Event {
	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove):
		eventType = EventRemove
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	case event.Has(fsnotify.Chmod):
		eventType = EventChmod
	default:
		return nil
	}

	return &Event{
		Type:      eventType,
		Path:      filepath.Clean(event.Name),
		Timestamp: time.Now(),
	}
}
