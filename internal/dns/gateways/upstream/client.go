// Package upstream forwards questions to a single upstream resolver over one
// shared UDP socket and matches replies back to the goroutines waiting on them.
package upstream

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/clock"
	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
	"github.com/haukened/rr-proxy/internal/dns/gateways/wire"
)

const (
	// DefaultServer is used when no upstream address is configured.
	DefaultServer = "8.8.8.8:53"
	// DefaultTimeout bounds a forward when the caller passes no timeout.
	DefaultTimeout = 5 * time.Second

	// maxResponseSize is the largest datagram read from the upstream socket.
	maxResponseSize = 65535
	// idAttempts bounds the search for a transaction id not in use.
	idAttempts = 64
)

// Error message constants for consistent error handling
const (
	errCodecRequired   = "DNS codec is required"
	errFailedToConnect = "failed to connect to %s: %w"
	errEncodeFailed    = "encode failed: %w"
	errWriteFailed     = "%w: write to %s failed: %w"
	errNoFreeID        = "%w: no free transaction id after %d attempts"
	errQueryTimeout    = "%w: no reply from %s within %v"
	errClosed          = "%w: client closed"
	errCancelled       = "%w: %w"
)

// DialFunc establishes the connection to the upstream resolver.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a Client.
type Options struct {
	// Server is the resolver address, host:port. Defaults to DefaultServer.
	Server string
	// Timeout applies when Forward is called without one.
	Timeout time.Duration
	Codec   wire.DNSCodec
	Logger  log.Logger
	Clock   clock.Clock
	// options to inject for testing purposes
	Dial DialFunc
	IDs  func() uint16
}

// Stats are cumulative counters since the client was created.
type Stats struct {
	Sent        uint64
	Retransmits uint64
	Timeouts    uint64
	Mismatches  uint64
}

// call is one entry of the correlation table.
type call struct {
	query   domain.PendingQuery
	replies chan domain.Message
}

// Client owns the shared upstream socket and the correlation table.
type Client struct {
	server  string
	timeout time.Duration
	conn    net.Conn
	codec   wire.DNSCodec
	logger  log.Logger
	clock   clock.Clock
	nextID  func() uint16

	mu      sync.Mutex
	pending map[uint16]*call

	sent        atomic.Uint64
	retransmits atomic.Uint64
	timeouts    atomic.Uint64
	mismatches  atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient connects the shared socket and starts the reader goroutine.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	if opts.Server == "" {
		opts.Server = DefaultServer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	if opts.IDs == nil {
		opts.IDs = randomID
	}

	conn, err := opts.Dial(ctx, "udp", opts.Server)
	if err != nil {
		return nil, fmt.Errorf(errFailedToConnect, opts.Server, err)
	}

	c := &Client{
		server:  opts.Server,
		timeout: opts.Timeout,
		conn:    conn,
		codec:   opts.Codec,
		logger:  opts.Logger,
		clock:   opts.Clock,
		nextID:  opts.IDs,
		pending: make(map[uint16]*call),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

func randomID() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// Server returns the upstream resolver address.
func (c *Client) Server() string {
	return c.server
}

// Forward sends q upstream and waits for the matching reply. If nothing
// matches within half the timeout the query is sent once more with the same
// id; silence for the full timeout returns domain.ErrTimeout. Replies with a
// non-zero rcode are returned as successes.
func (c *Client) Forward(ctx context.Context, q domain.Question, timeout time.Duration) (domain.Message, error) {
	if err := q.Validate(); err != nil {
		return domain.Message{}, err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	cl, err := c.register(ctx, q, timeout)
	if err != nil {
		return domain.Message{}, err
	}
	id := cl.query.ID

	packet, err := c.codec.Encode(domain.NewQuery(id, q))
	if err != nil {
		c.remove(cl)
		return domain.Message{}, fmt.Errorf(errEncodeFailed, err)
	}
	if err := c.send(packet); err != nil {
		c.remove(cl)
		return domain.Message{}, err
	}

	retry := time.NewTimer(timeout / 2)
	defer retry.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg := <-cl.replies:
			return msg, nil
		case <-retry.C:
			c.markRetransmit(cl)
			c.retransmits.Add(1)
			c.logger.Debug(map[string]any{
				"id":       id,
				"question": q.String(),
				"server":   c.server,
			}, "Retransmitting upstream query")
			if err := c.send(packet); err != nil {
				c.logger.Warn(map[string]any{"id": id, "error": err}, "Upstream retransmit failed")
			}
		case <-deadline.C:
			if !c.remove(cl) {
				// The reader matched the reply as the deadline fired and is
				// about to hand it over.
				return <-cl.replies, nil
			}
			c.timeouts.Add(1)
			return domain.Message{}, fmt.Errorf(errQueryTimeout, domain.ErrTimeout, c.server, timeout)
		case <-ctx.Done():
			c.remove(cl)
			return domain.Message{}, fmt.Errorf(errCancelled, domain.ErrUpstream, ctx.Err())
		case <-c.done:
			return domain.Message{}, fmt.Errorf(errClosed, domain.ErrUpstream)
		}
	}
}

// register inserts a PendingQuery under a transaction id that no live entry uses.
func (c *Client) register(ctx context.Context, q domain.Question, timeout time.Duration) (*call, error) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil, fmt.Errorf(errClosed, domain.ErrUpstream)
	default:
	}

	for i := 0; i < idAttempts; i++ {
		id := c.nextID()
		if _, taken := c.pending[id]; taken {
			continue
		}
		cl := &call{
			query: domain.PendingQuery{
				ID:        id,
				Client:    clientFrom(ctx),
				Question:  q,
				CreatedAt: now,
				Deadline:  now.Add(timeout),
			},
			replies: make(chan domain.Message, 1),
		}
		c.pending[id] = cl
		return cl, nil
	}
	return nil, fmt.Errorf(errNoFreeID, domain.ErrUpstream, idAttempts)
}

// remove deletes cl from the table if it is still the live entry for its id.
// It reports whether it removed anything.
func (c *Client) remove(cl *call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[cl.query.ID] != cl {
		return false
	}
	delete(c.pending, cl.query.ID)
	return true
}

func (c *Client) markRetransmit(cl *call) {
	c.mu.Lock()
	cl.query.Retransmit = true
	c.mu.Unlock()
}

func (c *Client) send(packet []byte) error {
	if _, err := c.conn.Write(packet); err != nil {
		return fmt.Errorf(errWriteFailed, domain.ErrUpstream, c.server, err)
	}
	c.sent.Add(1)
	return nil
}

// readLoop is the single reader of the shared socket.
func (c *Client) readLoop() {
	defer c.wg.Done()
	buf := make([]byte, maxResponseSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// ICMP errors such as port unreachable surface here on a connected socket.
			c.logger.Debug(map[string]any{"server": c.server, "error": err}, "Upstream read failed")
			continue
		}
		c.deliver(buf[:n])
	}
}

// deliver hands a datagram to the waiting Forward call it answers, if any.
func (c *Client) deliver(data []byte) {
	msg, err := c.codec.Decode(data)
	if err != nil {
		c.discard(err, nil)
		return
	}

	c.mu.Lock()
	cl, ok := c.pending[msg.ID]
	if ok {
		if err = matchReply(cl.query, msg); err == nil {
			delete(c.pending, msg.ID)
		}
	} else {
		err = fmt.Errorf("%w: no pending query with id %d", domain.ErrMismatchedResponse, msg.ID)
	}
	c.mu.Unlock()

	if err != nil {
		c.discard(err, &msg)
		return
	}
	cl.replies <- msg
}

func (c *Client) discard(err error, msg *domain.Message) {
	c.mismatches.Add(1)
	fields := map[string]any{"server": c.server, "error": err}
	if msg != nil {
		fields["id"] = msg.ID
	}
	c.logger.Debug(fields, "Discarded upstream datagram")
}

// matchReply checks that msg is a response echoing the pending question.
func matchReply(p domain.PendingQuery, msg domain.Message) error {
	if !msg.Flags.Response {
		return fmt.Errorf("%w: id %d is not a response", domain.ErrMismatchedResponse, msg.ID)
	}
	q, ok := msg.Question()
	if !ok || len(msg.Questions) != 1 || !q.Matches(p.Question) {
		return fmt.Errorf("%w: id %d does not echo %s", domain.ErrMismatchedResponse, msg.ID, p.Question)
	}
	return nil
}

// Pending returns the number of live entries in the correlation table.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// PendingQueries returns a snapshot of the correlation table.
func (c *Client) PendingQueries() []domain.PendingQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PendingQuery, 0, len(c.pending))
	for _, cl := range c.pending {
		out = append(out, cl.query)
	}
	return out
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:        c.sent.Load(),
		Retransmits: c.retransmits.Load(),
		Timeouts:    c.timeouts.Load(),
		Mismatches:  c.mismatches.Load(),
	}
}

// Close stops the reader and closes the socket. Forward calls still waiting
// return domain.ErrUpstream.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

type clientKey struct{}

// WithClient records the downstream client address on ctx so pending
// queries can be traced back to it.
func WithClient(ctx context.Context, addr net.Addr) context.Context {
	return context.WithValue(ctx, clientKey{}, addr)
}

func clientFrom(ctx context.Context) net.Addr {
	addr, _ := ctx.Value(clientKey{}).(net.Addr)
	return addr
}
