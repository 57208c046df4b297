package querylog

import (
	"sync"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// DefaultQueueSize bounds the number of events waiting for the worker.
const DefaultQueueSize = 1024

// Async hands events to a single worker goroutine that writes them to the
// wrapped Sink. Record never blocks: when the queue is full the event is
// dropped.
type Async struct {
	sink   Sink
	logger logpkg.Logger
	queue  chan domain.QueryEvent

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts the worker. A queueSize of zero or less uses DefaultQueueSize.
func NewAsync(sink Sink, queueSize int, logger logpkg.Logger) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	a := &Async{
		sink:   sink,
		logger: logger,
		queue:  make(chan domain.QueryEvent, queueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		if err := a.sink.Record(event); err != nil {
			a.logger.Warn(map[string]any{"domain": event.Domain, "error": err}, "Failed to write query log entry")
		}
	}
}

// Record enqueues event.
func (a *Async) Record(event domain.QueryEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		a.logger.Warn(map[string]any{"domain": event.Domain, "queue": cap(a.queue)}, "Query log queue full, dropping event")
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (a *Async) Pending() int {
	return len(a.queue)
}

// Close stops accepting events and waits until the queue has drained.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

var _ Sink = (*Async)(nil)
