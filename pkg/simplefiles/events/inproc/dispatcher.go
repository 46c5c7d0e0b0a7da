// Package inproc delivers object-stored events to a pool of in-process workers.
package inproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/events"
)

// ErrDispatcherClosed is returned when publishing after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Config holds dispatcher configuration.
type Config struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 256,
	}
}

// Dispatcher is a buffered simplefiles.EventSink drained by worker goroutines.
type Dispatcher struct {
	config  Config
	logger  *slog.Logger
	queue   chan simplefiles.ObjectStoredEvent
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// New creates a dispatcher. Events are queued until Start is called.
func New(cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		config: cfg,
		logger: logger,
		queue:  make(chan simplefiles.ObjectStoredEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

var _ simplefiles.EventSink = (*Dispatcher)(nil)

// ObjectStored enqueues the event. It blocks while the queue is full, until
// ctx ends or the dispatcher is closed.
func (d *Dispatcher) ObjectStored(ctx context.Context, event simplefiles.ObjectStoredEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- event:
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. Handlers run with a context detached from
// ctx's cancellation so queued events still drain during Close.
func (d *Dispatcher) Start(ctx context.Context, handler events.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	if d.started {
		return fmt.Errorf("dispatcher is already running")
	}
	d.started = true

	workerCtx := context.WithoutCancel(ctx)
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for event := range d.queue {
				if err := handler(workerCtx, event); err != nil {
					d.logger.ErrorContext(workerCtx, "Failed to process object stored event",
						"worker", id, "key", event.Key, "error", err)
				}
			}
		}(i + 1)
	}

	d.logger.InfoContext(ctx, "Event dispatcher started", "workers", d.config.Workers)
	return nil
}

// Close stops accepting events and waits for queued events to be processed
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	// Release publishers blocked on a full queue so the write lock can be taken.
	d.once.Do(func() { close(d.done) })

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		if n := len(d.queue); n > 0 {
			d.logger.WarnContext(ctx, "Dispatcher closed before start, dropping events", "count", n)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for event workers: %w", ctx.Err())
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
