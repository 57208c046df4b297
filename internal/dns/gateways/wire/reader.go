package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// reader walks a message, tracking the offset of the next unread byte.
type reader struct {
	data []byte
	off  int
}

func (r *reader) u16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, malformed("unexpected end of message at offset %d", r.off)
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, malformed("unexpected end of message at offset %d", r.off)
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// name reads a possibly compressed name at the current offset. Pointers
// must point strictly backwards, may not revisit an offset, and may be
// followed at most maxPointerHops times.
func (r *reader) name() (string, error) {
	labels, err := r.labels()
	if err != nil {
		return "", err
	}
	return domain.JoinLabels(labels), nil
}

func (r *reader) labels() ([]string, error) {
	var (
		labels  []string
		pos     = r.off
		jumped  bool
		hops    int
		wireLen = 1
		visited map[int]struct{}
	)
	for {
		if pos >= len(r.data) {
			return nil, malformed("name overruns message at offset %d", pos)
		}
		b := r.data[pos]
		switch b & 0xC0 {
		case 0x00:
			if b == 0 {
				if !jumped {
					r.off = pos + 1
				}
				return labels, nil
			}
			end := pos + 1 + int(b)
			if end > len(r.data) {
				return nil, malformed("label overruns message at offset %d", pos)
			}
			wireLen += int(b) + 1
			if wireLen > domain.MaxNameLength {
				return nil, malformed("name exceeds %d bytes", domain.MaxNameLength)
			}
			labels = append(labels, string(r.data[pos+1:end]))
			pos = end
		case 0xC0:
			if pos+2 > len(r.data) {
				return nil, malformed("truncated compression pointer at offset %d", pos)
			}
			target := int(binary.BigEndian.Uint16(r.data[pos:]) & 0x3FFF)
			if target >= pos {
				return nil, malformed("compression pointer at %d targets %d, not before it", pos, target)
			}
			if _, seen := visited[target]; seen {
				return nil, malformed("compression pointer loop at offset %d", target)
			}
			if hops++; hops > maxPointerHops {
				return nil, malformed("more than %d compression pointers in one name", maxPointerHops)
			}
			if visited == nil {
				visited = make(map[int]struct{}, 4)
			}
			visited[target] = struct{}{}
			if !jumped {
				r.off = pos + 2
				jumped = true
			}
			pos = target
		default:
			return nil, malformed("reserved label type 0x%02x at offset %d", b&0xC0, pos)
		}
	}
}

func (r *reader) question() (domain.Question, error) {
	name, err := r.name()
	if err != nil {
		return domain.Question{}, err
	}
	qtype, err := r.u16()
	if err != nil {
		return domain.Question{}, err
	}
	qclass, err := r.u16()
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Question{Name: name, Type: domain.RRType(qtype), Class: domain.RRClass(qclass)}, nil
}

func (r *reader) section(label string, n int) ([]domain.ResourceRecord, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]domain.ResourceRecord, 0, n)
	for i := 0; i < n; i++ {
		rr, err := r.record()
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", label, i, err)
		}
		out = append(out, rr)
	}
	return out, nil
}

func (r *reader) record() (domain.ResourceRecord, error) {
	var (
		rr  domain.ResourceRecord
		err error
	)
	if rr.Name, err = r.name(); err != nil {
		return rr, err
	}
	rrtype, err := r.u16()
	if err != nil {
		return rr, err
	}
	class, err := r.u16()
	if err != nil {
		return rr, err
	}
	if rr.TTL, err = r.u32(); err != nil {
		return rr, err
	}
	rdlen, err := r.u16()
	if err != nil {
		return rr, err
	}
	rr.Type = domain.RRType(rrtype)
	rr.Class = domain.RRClass(class)

	start, end := r.off, r.off+int(rdlen)
	if end > len(r.data) {
		return rr, malformed("rdata of %d bytes overruns message at offset %d", rdlen, start)
	}
	if rr.Data, err = r.rdata(rr.Type, start, end); err != nil {
		return rr, err
	}
	r.off = end
	return rr, nil
}

// rdata copies the record data in [start, end), expanding compressed names
// for the types whose rdata may carry them so the record stays valid when
// written into another message.
func (r *reader) rdata(t domain.RRType, start, end int) ([]byte, error) {
	var layout []field
	switch t {
	case domain.RRTypeNS, domain.RRTypeCNAME, domain.RRTypePTR:
		layout = []field{nameField}
	case domain.RRTypeMX:
		layout = []field{fixedField(2), nameField}
	case domain.RRTypeSRV:
		layout = []field{fixedField(6), nameField}
	case domain.RRTypeSOA:
		layout = []field{nameField, nameField, fixedField(20)}
	default:
		out := make([]byte, end-start)
		copy(out, r.data[start:end])
		return out, nil
	}

	sub := &reader{data: r.data[:end], off: start}
	out := make([]byte, 0, end-start+16)
	for _, f := range layout {
		if f.fixed > 0 {
			if sub.off+f.fixed > end {
				return nil, malformed("%s rdata too short", t)
			}
			out = append(out, sub.data[sub.off:sub.off+f.fixed]...)
			sub.off += f.fixed
			continue
		}
		labels, err := sub.labels()
		if err != nil {
			return nil, fmt.Errorf("%s rdata: %w", t, err)
		}
		out = appendLabels(out, labels)
	}
	if sub.off != end {
		return nil, malformed("%s rdata has %d trailing bytes", t, end-sub.off)
	}
	return out, nil
}

// field describes one element of an rdata layout: either a run of fixed
// bytes or a domain name.
type field struct {
	fixed int
}

var nameField = field{}

func fixedField(n int) field { return field{fixed: n} }

func appendLabels(b []byte, labels []string) []byte {
	for _, l := range labels {
		b = append(b, byte(len(l)))
		b = append(b, l...)
	}
	return append(b, 0)
}
