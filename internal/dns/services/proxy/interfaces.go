package proxy

import (
	"context"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// Codec converts between datagrams and messages.
type Codec interface {
	Decode(data []byte) (domain.Message, error)
	EncodeLimit(msg domain.Message, limit int) ([]byte, error)
}

// UpstreamClient forwards a single question to the upstream resolver.
type UpstreamClient interface {
	Forward(ctx context.Context, q domain.Question, timeout time.Duration) (domain.Message, error)
	Server() string
}

// ZoneTable answers questions from local data.
type ZoneTable interface {
	Lookup(name string, qtype domain.RRType) ([]domain.ResourceRecord, bool)
}

// Blocklist decides whether a name must not be resolved.
type Blocklist interface {
	Decide(name string) domain.BlockDecision
}

// Cache holds recent upstream answers keyed by question.
type Cache interface {
	Get(q domain.Question) (domain.Message, bool)
	Set(q domain.Question, msg domain.Message) error
}

// LogSink receives an event for every forwarded query.
type LogSink interface {
	Record(event domain.QueryEvent) error
}
