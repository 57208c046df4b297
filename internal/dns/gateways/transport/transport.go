// Package transport moves raw DNS datagrams between the network and the
// dispatcher. It never decodes messages; decoding, classification and reply
// construction all happen behind the PacketHandler.
package transport

import (
	"context"
	"net"
)

// ServerTransport is a listener that feeds datagrams to a PacketHandler.
type ServerTransport interface {
	// Start binds the listener and begins the receive loop. It returns once
	// the socket is bound; the loop runs until ctx ends or Stop is called.
	Start(ctx context.Context, handler PacketHandler) error

	// Stop closes the socket and waits for in-flight handlers to finish.
	Stop() error

	// Address returns the bound address once started, else the configured one.
	Address() string
}

// PacketHandler turns one request datagram into an optional reply.
type PacketHandler interface {
	// Serve returns the reply bytes and true, or false when the request must
	// be dropped without a reply.
	Serve(ctx context.Context, packet []byte, clientAddr net.Addr) ([]byte, bool)
}

// PacketHandlerFunc adapts a function to PacketHandler.
type PacketHandlerFunc func(ctx context.Context, packet []byte, clientAddr net.Addr) ([]byte, bool)

// Serve calls f.
func (f PacketHandlerFunc) Serve(ctx context.Context, packet []byte, clientAddr net.Addr) ([]byte, bool) {
	return f(ctx, packet, clientAddr)
}

// TransportType represents the different types of DNS transport protocols supported.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"
)
