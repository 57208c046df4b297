package transport

import (
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
)

// Options holds settings shared by all transport types.
type Options struct {
	Addr string
	// ReadBufferSize bounds the size of one received datagram. Defaults to
	// DefaultReadBufferSize.
	ReadBufferSize int
	Logger         log.Logger
}

// NewTransport creates a transport of the given type.
func NewTransport(transportType TransportType, opts Options) (ServerTransport, error) {
	switch transportType {
	case TransportUDP:
		return NewUDPTransport(opts), nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{TransportUDP}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	for _, t := range GetSupportedTransports() {
		if t == transportType {
			return true
		}
	}
	return false
}
