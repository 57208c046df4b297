package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
)

// DefaultReadBufferSize fits any EDNS-sized query a client may send.
const DefaultReadBufferSize = 4096

// UDPTransport implements ServerTransport for standard DNS over UDP (RFC 1035).
// The receive loop only reads and copies each datagram; the handler runs in
// its own goroutine so a slow upstream never blocks reception.
type UDPTransport struct {
	addr    string
	bufSize int
	logger  log.Logger

	mu      sync.RWMutex
	conn    *net.UDPConn
	running bool
	stopCh  chan struct{}

	loop     sync.WaitGroup
	inflight sync.WaitGroup
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts Options) *UDPTransport {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:    opts.Addr,
		bufSize: opts.ReadBufferSize,
		logger:  opts.Logger,
	}
}

// Start binds the UDP socket and starts the receive loop.
func (t *UDPTransport) Start(ctx context.Context, handler PacketHandler) error {
	if handler == nil {
		return errors.New("packet handler is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	t.loop.Add(1)
	go t.listenLoop(ctx, conn, t.stopCh, handler)
	go func(stop <-chan struct{}) {
		select {
		case <-ctx.Done():
			t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
			_ = t.Stop()
		case <-stop:
		}
	}(t.stopCh)

	return nil
}

// Stop closes the socket, then waits for the receive loop and every
// in-flight handler to return.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	close(t.stopCh)
	closeErr := t.conn.Close()
	if closeErr != nil {
		t.logger.Warn(map[string]any{"error": closeErr}, "Error closing UDP connection")
	}
	t.running = false
	t.mu.Unlock()

	t.loop.Wait()
	t.inflight.Wait()

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")
	return closeErr
}

// Address returns the bound address once started, else the configured one.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

// listenLoop reads datagrams until the socket is closed.
func (t *UDPTransport) listenLoop(ctx context.Context, conn *net.UDPConn, stop <-chan struct{}, handler PacketHandler) {
	defer t.loop.Done()
	buffer := make([]byte, t.bufSize)

	for {
		n, clientAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn(map[string]any{"error": err}, "Failed to read UDP packet")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		t.inflight.Add(1)
		go t.handlePacket(ctx, conn, packet, clientAddr, handler)
	}
}

// handlePacket runs the handler for one datagram and writes its reply, if any.
func (t *UDPTransport) handlePacket(ctx context.Context, conn *net.UDPConn, data []byte, clientAddr *net.UDPAddr, handler PacketHandler) {
	defer t.inflight.Done()

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(data),
		"raw":    fmt.Sprintf("%x", data),
	}, "Received raw DNS query data")

	reply, ok := handler.Serve(ctx, data, clientAddr)
	if !ok {
		t.logger.Debug(map[string]any{
			"client": clientAddr.String(),
			"size":   len(data),
		}, "Dropped DNS request without reply")
		return
	}

	if _, err := conn.WriteToUDP(reply, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err,
		}, "Failed to send DNS response")
		return
	}

	t.logger.Debug(map[string]any{
		"client": clientAddr.String(),
		"size":   len(reply),
	}, "Sent DNS response")
}

var _ ServerTransport = (*UDPTransport)(nil)
