package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

const (
	headerSize = 12

	// maxPointerHops bounds how many compression pointers one name may follow.
	maxPointerHops = 16

	// Smallest possible question (root name, type, class) and record
	// (root name, type, class, ttl, rdlength).
	minQuestionSize = 5
	minRecordSize   = 11
)

// udpCodec implements DNSCodec for standard DNS over UDP messages.
type udpCodec struct {
	logger log.Logger
}

// NewUDPCodec creates a codec that reports truncation through logger.
func NewUDPCodec(logger log.Logger) *udpCodec {
	return &udpCodec{
		logger: logger,
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// Decode parses data into a Message. Trailing bytes after the last declared
// record are ignored.
func (c *udpCodec) Decode(data []byte) (domain.Message, error) {
	if len(data) < headerSize {
		return domain.Message{}, malformed("message too short: %d bytes", len(data))
	}

	msg := domain.Message{
		Header: domain.Header{
			ID:    binary.BigEndian.Uint16(data[0:2]),
			Flags: unpackFlags(binary.BigEndian.Uint16(data[2:4])),
		},
	}
	qd := int(binary.BigEndian.Uint16(data[4:6]))
	an := int(binary.BigEndian.Uint16(data[6:8]))
	ns := int(binary.BigEndian.Uint16(data[8:10]))
	ar := int(binary.BigEndian.Uint16(data[10:12]))

	if qd*minQuestionSize+(an+ns+ar)*minRecordSize > len(data)-headerSize {
		return domain.Message{}, malformed("section counts %d/%d/%d/%d exceed %d byte message", qd, an, ns, ar, len(data))
	}

	r := &reader{data: data, off: headerSize}
	if qd > 0 {
		msg.Questions = make([]domain.Question, 0, qd)
	}
	for i := 0; i < qd; i++ {
		q, err := r.question()
		if err != nil {
			return domain.Message{}, fmt.Errorf("question %d: %w", i, err)
		}
		msg.Questions = append(msg.Questions, q)
	}

	var err error
	if msg.Answers, err = r.section("answer", an); err != nil {
		return domain.Message{}, err
	}
	if msg.Authority, err = r.section("authority", ns); err != nil {
		return domain.Message{}, err
	}
	if msg.Additional, err = r.section("additional", ar); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Encode serializes msg. Owner and question names share suffixes through
// compression pointers; names inside rdata are written as stored.
func (c *udpCodec) Encode(msg domain.Message) ([]byte, error) {
	counts := msg.Counts()
	for _, n := range []int{counts.Questions, counts.Answers, counts.Authority, counts.Additional} {
		if n > 0xFFFF {
			return nil, fmt.Errorf("section holds %d entries, max 65535", n)
		}
	}

	w := newWriter()
	w.u16(msg.ID)
	w.u16(packFlags(msg.Flags))
	w.u16(uint16(counts.Questions))
	w.u16(uint16(counts.Answers))
	w.u16(uint16(counts.Authority))
	w.u16(uint16(counts.Additional))

	for _, q := range msg.Questions {
		if err := w.name(q.Name); err != nil {
			return nil, err
		}
		w.u16(uint16(q.Type))
		w.u16(uint16(q.Class))
	}
	for _, section := range [][]domain.ResourceRecord{msg.Answers, msg.Authority, msg.Additional} {
		for _, rr := range section {
			if err := w.record(rr); err != nil {
				return nil, err
			}
		}
	}
	return w.buf, nil
}

// EncodeLimit encodes msg and, while the result is larger than limit, drops
// records from the end of the additional, then authority, then answer
// sections and sets the TC bit.
func (c *udpCodec) EncodeLimit(msg domain.Message, limit int) ([]byte, error) {
	out, err := c.Encode(msg)
	if err != nil || len(out) <= limit {
		return out, err
	}

	full := len(out)
	trimmed := msg
	trimmed.Flags.Truncated = true
	for len(out) > limit {
		switch {
		case len(trimmed.Additional) > 0:
			trimmed.Additional = trimmed.Additional[:len(trimmed.Additional)-1]
		case len(trimmed.Authority) > 0:
			trimmed.Authority = trimmed.Authority[:len(trimmed.Authority)-1]
		case len(trimmed.Answers) > 0:
			trimmed.Answers = trimmed.Answers[:len(trimmed.Answers)-1]
		default:
			return nil, fmt.Errorf("message does not fit in %d bytes without records", limit)
		}
		if out, err = c.Encode(trimmed); err != nil {
			return nil, err
		}
	}

	kept := recordCount(trimmed)
	c.logger.Debug(map[string]any{
		"id":      msg.ID,
		"full":    full,
		"limit":   limit,
		"kept":    kept,
		"dropped": recordCount(msg) - kept,
		"encoded": len(out),
	}, "Truncated DNS message")
	return out, nil
}

func unpackFlags(v uint16) domain.Flags {
	return domain.Flags{
		Response:           v&0x8000 != 0,
		Opcode:             domain.Opcode((v >> 11) & 0x0F),
		Authoritative:      v&0x0400 != 0,
		Truncated:          v&0x0200 != 0,
		RecursionDesired:   v&0x0100 != 0,
		RecursionAvailable: v&0x0080 != 0,
		Zero:               v&0x0040 != 0,
		AuthenticatedData:  v&0x0020 != 0,
		CheckingDisabled:   v&0x0010 != 0,
		RCode:              domain.RCode(v & 0x000F),
	}
}

func packFlags(f domain.Flags) uint16 {
	v := uint16(f.Opcode&0x0F)<<11 | uint16(f.RCode&0x0F)
	for _, bit := range []struct {
		set  bool
		mask uint16
	}{
		{f.Response, 0x8000},
		{f.Authoritative, 0x0400},
		{f.Truncated, 0x0200},
		{f.RecursionDesired, 0x0100},
		{f.RecursionAvailable, 0x0080},
		{f.Zero, 0x0040},
		{f.AuthenticatedData, 0x0020},
		{f.CheckingDisabled, 0x0010},
	} {
		if bit.set {
			v |= bit.mask
		}
	}
	return v
}

func recordCount(msg domain.Message) int {
	return len(msg.Answers) + len(msg.Authority) + len(msg.Additional)
}

var _ DNSCodec = (*udpCodec)(nil)
