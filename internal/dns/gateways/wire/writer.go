package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// maxPointerOffset is the largest offset a 14-bit compression pointer can hold.
const maxPointerOffset = 0x3FFF

// writer accumulates an encoded message and remembers where each name
// suffix was first written.
type writer struct {
	buf   []byte
	names map[string]int
}

func newWriter() *writer {
	return &writer{
		buf:   make([]byte, 0, MaxUDPSize),
		names: make(map[string]int),
	}
}

func (w *writer) u16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// name writes name, replacing the longest suffix already in the message
// with a pointer. Suffixes match byte for byte so the original case survives.
func (w *writer) name(name string) error {
	labels, err := domain.SplitLabels(name)
	if err != nil {
		return err
	}
	for i := range labels {
		suffix := domain.JoinLabels(labels[i:])
		if off, ok := w.names[suffix]; ok {
			w.u16(0xC000 | uint16(off))
			return nil
		}
		if len(w.buf) <= maxPointerOffset {
			w.names[suffix] = len(w.buf)
		}
		w.buf = append(w.buf, byte(len(labels[i])))
		w.buf = append(w.buf, labels[i]...)
	}
	w.buf = append(w.buf, 0)
	return nil
}

func (w *writer) record(rr domain.ResourceRecord) error {
	if len(rr.Data) > 0xFFFF {
		return fmt.Errorf("%s record for %q: rdata too large: %d bytes", rr.Type, rr.Name, len(rr.Data))
	}
	if err := w.name(rr.Name); err != nil {
		return err
	}
	w.u16(uint16(rr.Type))
	w.u16(uint16(rr.Class))
	w.u32(rr.TTL)
	w.u16(uint16(len(rr.Data)))
	w.buf = append(w.buf, rr.Data...)
	return nil
}
