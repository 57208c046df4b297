package domain

import "errors"

// Error taxonomy shared by the codec, the upstream client and the dispatcher.
// Callers wrap these with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrMalformedMessage marks bytes that do not form a valid DNS message.
	// Malformed client queries are dropped without a reply.
	ErrMalformedMessage = errors.New("malformed dns message")

	// ErrInvalidName marks a name that cannot be encoded: a label longer
	// than 63 bytes, an empty interior label, or more than 255 bytes on the wire.
	ErrInvalidName = errors.New("invalid domain name")

	// ErrTimeout is returned when no matching upstream reply arrived before the deadline.
	ErrTimeout = errors.New("upstream timeout")

	// ErrUpstream covers transport failures talking to the upstream resolver.
	ErrUpstream = errors.New("upstream failure")

	// ErrMismatchedResponse marks an upstream datagram that answers some other
	// question. It never leaves the upstream client.
	ErrMismatchedResponse = errors.New("mismatched upstream response")
)
