package watcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents the type of file system event
type EventType int

const (
	// EventCreate represents file creation, including the rename target of an atomic write
	EventCreate EventType = iota
	// EventWrite represents file modification
	EventWrite
	// EventRemove represents file removal
	EventRemove
	// EventRename represents the old name of a renamed file
	EventRename
	// EventChmod represents permission changes
	EventChmod
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	case EventChmod:
		return "chmod"
	default:
		return "unknown"
	}
}

// Event represents a file system event on a watched file
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// Watcher defines the interface for artifact watching
type Watcher interface {
	// Start begins watching the given files. Their parent directories are
	// watched so files replaced by rename are still seen.
	Start(ctx context.Context, paths []string) error

	// Events returns undebounced events when no processor is set
	Events() <-chan Event

	// Errors returns a channel of errors encountered during watching
	Errors() <-chan error

	// Close stops watching and cleans up resources
	Close() error
}

// Config holds configuration for the watcher
type Config struct {
	// DebounceDelay is the quiet time required before a batch is released
	DebounceDelay time.Duration

	// MaxDebounceDelay caps how long a busy path can be held back
	MaxDebounceDelay time.Duration

	// QueueCapacity is the capacity of the event and batch channels
	QueueCapacity int

	Logger zerolog.Logger
}

// Fingerprint identifies a file's content
type Fingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
	Hash    string // hex sha256 of the content
}

// Debouncer coalesces bursts of events per path
type Debouncer interface {
	// Add adds an event to be debounced
	Add(event Event)

	// Events returns debounced batches, one path per batch
	Events() <-chan []Event

	// Close stops the debouncer and closes the batch channel
	Close()
}

// Fingerprinter generates fingerprints for files
type Fingerprinter interface {
	Fingerprint(path string) (*Fingerprint, error)

	// Same reports whether two fingerprints describe identical content
	Same(a, b *Fingerprint) bool
}

// BatchProcessor processes debounced batches
type BatchProcessor interface {
	Process(ctx context.Context, events []Event) error

	Close() error
}
