package watcher

import (
	"context"
	"sync"
	"time"
)

type pendingBatch struct {
	events   []Event
	timer    *time.Timer
	maxTimer *time.Timer
}

// DebouncerImpl implements the Debouncer interface. A batch is released once
// its path has been quiet for delay, or maxDelay after its first event.
type DebouncerImpl struct {
	delay     time.Duration
	maxDelay  time.Duration
	eventChan chan []Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	pending   map[string]*pendingBatch
}

// NewDebouncer creates a new debouncer. A zero maxDelay disables the cap.
func NewDebouncer(delay, maxDelay time.Duration, queueCapacity int) *DebouncerImpl {
	ctx, cancel := context.WithCancel(context.Background())

	return &DebouncerImpl{
		delay:     delay,
		maxDelay:  maxDelay,
		eventChan: make(chan []Event, queueCapacity),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]*pendingBatch),
	}
}

// Add adds an event to be debounced
func (d *DebouncerImpl) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	path := event.Path
	batch, exists := d.pending[path]
	if !exists {
		batch = &pendingBatch{events: make([]Event, 0, 4)}
		d.pending[path] = batch
		if d.maxDelay > 0 {
			batch.maxTimer = time.AfterFunc(d.maxDelay, func() { d.flush(path, batch) })
		}
	}
	batch.events = append(batch.events, event)

	if batch.timer != nil {
		batch.timer.Stop()
	}
	batch.timer = time.AfterFunc(d.delay, func() { d.flush(path, batch) })
}

// Events returns the debounced events channel
func (d *DebouncerImpl) Events() <-chan []Event {
	return d.eventChan
}

// Pending returns the number of paths waiting to be released.
func (d *DebouncerImpl) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *DebouncerImpl) flush(path string, batch *pendingBatch) {
	d.mu.Lock()
	// the other timer of this batch may have fired first
	if d.closed || d.pending[path] != batch {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	batch.timer.Stop()
	if batch.maxTimer != nil {
		batch.maxTimer.Stop()
	}
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	select {
	case d.eventChan <- batch.events:
	case <-d.ctx.Done():
	}
}

// Close stops the debouncer, dropping batches not yet released
func (d *DebouncerImpl) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()
	for _, batch := range d.pending {
		if batch.timer != nil {
			batch.timer.Stop()
		}
		if batch.maxTimer != nil {
			batch.maxTimer.Stop()
		}
	}
	clear(d.pending)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.eventChan)
}
