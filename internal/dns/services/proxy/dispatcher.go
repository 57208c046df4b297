// Package proxy implements the per-datagram state machine of the forwarding
// proxy: decode the request, answer it locally or forward it upstream, then
// encode a reply that fits in a plain UDP datagram.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/clock"
	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
	"github.com/haukened/rr-proxy/internal/dns/gateways/upstream"
	"github.com/haukened/rr-proxy/internal/dns/gateways/wire"
)

// DefaultTimeout bounds one upstream forward, retransmission included.
const DefaultTimeout = 5 * time.Second

var (
	errNotRequest     = errors.New("message is a response")
	errNotImplemented = errors.New("opcode not implemented")
	errQuestionCount  = errors.New("query must carry exactly one question")
	errCodecRequired  = errors.New("codec is required")
	errClientRequired = errors.New("upstream client is required")
)

// Options wires a Dispatcher. Zone, Blocklist, Cache and Sink are optional.
type Options struct {
	Codec      Codec
	Upstream   UpstreamClient
	Zone       ZoneTable
	Blocklist  Blocklist
	Cache      Cache
	Sink       LogSink
	Logger     log.Logger
	Clock      clock.Clock
	Timeout    time.Duration
	MaxUDPSize int
}

// Stats are cumulative counters since the dispatcher was created.
type Stats struct {
	Received  uint64
	Dropped   uint64 // malformed or rejected, no reply sent
	Local     uint64
	Blocked   uint64
	CacheHits uint64
	Forwarded uint64
	ServFail  uint64
	NotImp    uint64 // opcodes other than QUERY
}

// Dispatcher serves decoded DNS queries. It is safe for concurrent use; each
// datagram is handled on the caller's goroutine.
type Dispatcher struct {
	codec      Codec
	upstream   UpstreamClient
	zone       ZoneTable
	blocklist  Blocklist
	cache      Cache
	sink       LogSink
	logger     log.Logger
	clock      clock.Clock
	timeout    time.Duration
	maxUDPSize int

	received, dropped, local, blocked atomic.Uint64
	cacheHits, forwarded, servFail    atomic.Uint64
	notImp                            atomic.Uint64
}

// New builds a Dispatcher from opts.
func New(opts Options) (*Dispatcher, error) {
	if opts.Codec == nil {
		return nil, errCodecRequired
	}
	if opts.Upstream == nil {
		return nil, errClientRequired
	}
	d := &Dispatcher{
		codec:      opts.Codec,
		upstream:   opts.Upstream,
		zone:       opts.Zone,
		blocklist:  opts.Blocklist,
		cache:      opts.Cache,
		sink:       opts.Sink,
		logger:     opts.Logger,
		clock:      opts.Clock,
		timeout:    opts.Timeout,
		maxUDPSize: opts.MaxUDPSize,
	}
	if d.logger == nil {
		d.logger = log.NewNoopLogger()
	}
	if d.clock == nil {
		d.clock = clock.RealClock{}
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.maxUDPSize < wire.MaxUDPSize {
		d.maxUDPSize = wire.MaxUDPSize
	}
	return d, nil
}

// Serve handles one request datagram. It returns false when the datagram is
// dropped without a reply.
func (d *Dispatcher) Serve(ctx context.Context, packet []byte, clientAddr net.Addr) ([]byte, bool) {
	d.received.Add(1)

	req, err := d.codec.Decode(packet)
	if err != nil {
		d.drop(clientAddr, err)
		return nil, false
	}
	q, err := validateRequest(req)
	switch {
	case errors.Is(err, errNotImplemented):
		d.notImp.Add(1)
		d.logger.Debug(map[string]any{"client": addrString(clientAddr), "opcode": uint8(req.Flags.Opcode)}, "Unsupported opcode")
		return d.encode(req, notImplemented(req))
	case err != nil:
		d.drop(clientAddr, err)
		return nil, false
	}

	var reply domain.Message
	decision := d.Classify(q)
	switch decision.Kind {
	case domain.DecisionLocal:
		d.local.Add(1)
		reply = localAnswer(req, decision)
	default:
		reply = d.forward(ctx, req, decision.Question, clientAddr)
	}
	return d.encode(req, reply)
}

func (d *Dispatcher) drop(clientAddr net.Addr, err error) {
	d.dropped.Add(1)
	d.logger.Debug(map[string]any{"client": addrString(clientAddr), "error": err}, "Dropping query")
}

func validateRequest(req domain.Message) (domain.Question, error) {
	if req.Flags.Response {
		return domain.Question{}, errNotRequest
	}
	if req.Flags.Opcode != domain.OpcodeQuery {
		return domain.Question{}, fmt.Errorf("%w: %d", errNotImplemented, req.Flags.Opcode)
	}
	if len(req.Questions) != 1 {
		return domain.Question{}, fmt.Errorf("%w: got %d", errQuestionCount, len(req.Questions))
	}
	return req.Questions[0], nil
}

// Classify decides how q is answered. A blocklist hit is answered locally
// with NXDOMAIN, a zone match with the zone records; anything else is
// forwarded.
func (d *Dispatcher) Classify(q domain.Question) domain.Decision {
	if d.blocklist != nil {
		if dec := d.blocklist.Decide(q.Name); dec.Blocked {
			d.blocked.Add(1)
			d.logger.Info(map[string]any{
				"question": q.String(),
				"rule":     dec.MatchedRule,
				"kind":     dec.Kind.String(),
				"source":   dec.Source,
			}, "Blocked query")
			return domain.LocalAnswer(nil, domain.RCodeNXDomain)
		}
	}
	if d.zone != nil && (q.Class == domain.RRClassIN || q.Class == domain.RRClassANY) {
		if records, ok := d.zone.Lookup(q.Name, q.Type); ok {
			return domain.LocalAnswer(records, domain.RCodeNoError)
		}
	}
	return domain.Forward(q)
}

// localAnswer builds the authoritative reply for a local decision.
func localAnswer(req domain.Message, decision domain.Decision) domain.Message {
	reply := domain.NewReply(req, decision.RCode)
	reply.Flags.Authoritative = true
	reply.Flags.RecursionAvailable = true
	reply.Answers = decision.Records
	return reply
}

// notImplemented answers opcodes the proxy does not handle, echoing the
// request's opcode and questions.
func notImplemented(req domain.Message) domain.Message {
	reply := domain.NewReply(req, domain.RCodeNotImp)
	reply.Flags.RecursionAvailable = true
	return reply
}

func servFail(req domain.Message) domain.Message {
	reply := domain.NewReply(req, domain.RCodeServFail)
	reply.Flags.RecursionAvailable = true
	return reply
}

// forward answers q from the cache or the upstream resolver. The reply keeps
// the upstream message intact apart from the transaction id.
func (d *Dispatcher) forward(ctx context.Context, req domain.Message, q domain.Question, clientAddr net.Addr) domain.Message {
	if d.cache != nil {
		if cached, ok := d.cache.Get(q); ok {
			d.cacheHits.Add(1)
			cached.ID = req.ID
			cached.Questions = req.Questions
			return cached
		}
	}

	start := d.clock.Now()
	resp, err := d.upstream.Forward(upstream.WithClient(ctx, clientAddr), q, d.timeout)
	if err != nil {
		d.servFail.Add(1)
		d.logger.Warn(map[string]any{
			"question": q.String(),
			"client":   addrString(clientAddr),
			"error":    err,
		}, "Upstream forward failed")
		return servFail(req)
	}
	d.forwarded.Add(1)
	elapsed := d.clock.Now().Sub(start)

	d.store(q, resp)
	d.emit(q, resp, start, elapsed)

	resp.ID = req.ID
	return resp
}

func (d *Dispatcher) store(q domain.Question, resp domain.Message) {
	if d.cache == nil || resp.Flags.Truncated {
		return
	}
	if rc := resp.Flags.RCode; rc != domain.RCodeNoError && rc != domain.RCodeNXDomain {
		return
	}
	if err := d.cache.Set(q, resp); err != nil {
		d.logger.Debug(map[string]any{"question": q.String(), "error": err}, "Answer not cached")
	}
}

func (d *Dispatcher) emit(q domain.Question, resp domain.Message, start time.Time, elapsed time.Duration) {
	if d.sink == nil {
		return
	}
	event := NewQueryEvent(q, resp, d.upstream.Server(), start, elapsed)
	if err := d.sink.Record(event); err != nil {
		d.logger.Warn(map[string]any{"question": q.String(), "error": err}, "Failed to record query event")
	}
}

// encode serializes reply within the UDP size limit. If reply cannot be
// encoded a bare SERVFAIL is tried instead.
func (d *Dispatcher) encode(req, reply domain.Message) ([]byte, bool) {
	limit := d.replyLimit(req)
	out, err := d.codec.EncodeLimit(reply, limit)
	if err == nil {
		return out, true
	}
	d.logger.Error(map[string]any{"id": reply.ID, "error": err}, "Failed to encode reply")

	d.servFail.Add(1)
	out, err = d.codec.EncodeLimit(servFail(req), limit)
	if err != nil {
		d.logger.Error(map[string]any{"id": req.ID, "error": err}, "Failed to encode SERVFAIL")
		return nil, false
	}
	return out, true
}

// replyLimit is the classic 512 bytes unless req carries an EDNS OPT record
// advertising a larger buffer, which is honoured up to maxUDPSize.
func (d *Dispatcher) replyLimit(req domain.Message) int {
	limit := wire.MaxUDPSize
	for _, rr := range req.Additional {
		if rr.Type != domain.RRTypeOPT {
			continue
		}
		if advertised := int(rr.Class); advertised > limit {
			limit = min(advertised, d.maxUDPSize)
		}
		break
	}
	return limit
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:  d.received.Load(),
		Dropped:   d.dropped.Load(),
		Local:     d.local.Load(),
		Blocked:   d.blocked.Load(),
		CacheHits: d.cacheHits.Load(),
		Forwarded: d.forwarded.Load(),
		ServFail:  d.servFail.Load(),
		NotImp:    d.notImp.Load(),
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
