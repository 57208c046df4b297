// Package querylog records forwarded queries. The bbolt Store persists
// them, Async puts a bounded queue in front of any Sink so the query path
// never waits on disk, and Noop discards everything.
package querylog

import (
	"errors"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// ErrQueueFull is returned by Async.Record when the event had to be dropped.
var ErrQueueFull = errors.New("query log queue full")

// ErrClosed is returned when recording into a closed sink.
var ErrClosed = errors.New("query log closed")

// Sink accepts completed query events.
type Sink interface {
	Record(event domain.QueryEvent) error
}

// Noop is a Sink that drops every event.
type Noop struct{}

func (Noop) Record(domain.QueryEvent) error { return nil }
