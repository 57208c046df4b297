// Package wire encodes and decodes DNS messages in the RFC 1035 §4 wire format.
package wire

import "github.com/haukened/rr-proxy/internal/dns/domain"

// MaxUDPSize is the classic payload bound for DNS over UDP without EDNS.
const MaxUDPSize = 512

// DNSCodec converts between wire bytes and domain messages.
type DNSCodec interface {
	// Decode parses a complete message. Errors wrap domain.ErrMalformedMessage.
	Decode(data []byte) (domain.Message, error)
	// Encode serializes a message, compressing repeated owner-name suffixes.
	// Unencodable names wrap domain.ErrInvalidName.
	Encode(msg domain.Message) ([]byte, error)
	// EncodeLimit encodes like Encode, then drops trailing records and sets
	// the TC bit until the result fits in limit bytes.
	EncodeLimit(msg domain.Message, limit int) ([]byte, error)
}
