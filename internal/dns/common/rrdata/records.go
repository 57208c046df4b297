package rrdata

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

func encodeA(value string) ([]byte, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("invalid A record IP: %s", value)
	}
	b := addr.As4()
	return b[:], nil
}

func decodeA(b []byte) (string, error) {
	if len(b) != 4 {
		return "", fmt.Errorf("invalid A rdata length: %d", len(b))
	}
	return netip.AddrFrom4([4]byte(b)).String(), nil
}

func encodeAAAA(value string) ([]byte, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil || !addr.Is6() || addr.Is4In6() {
		return nil, fmt.Errorf("invalid AAAA record IP: %s", value)
	}
	b := addr.As16()
	return b[:], nil
}

func decodeAAAA(b []byte) (string, error) {
	if len(b) != 16 {
		return "", fmt.Errorf("invalid AAAA rdata length: %d", len(b))
	}
	return netip.AddrFrom16([16]byte(b)).String(), nil
}

// MX: "10 mail.example.com"
func encodeMX(value string) ([]byte, error) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid MX record format (expected: preference exchange): %s", value)
	}
	pref, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid MX preference: %s", parts[0])
	}
	name, err := EncodeName(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid MX exchange: %w", err)
	}
	return append(binary.BigEndian.AppendUint16(nil, uint16(pref)), name...), nil
}

func decodeMX(b []byte) (string, error) {
	if len(b) < 3 {
		return "", fmt.Errorf("invalid MX rdata length: %d", len(b))
	}
	name, err := decodeName(b[2:])
	if err != nil {
		return "", fmt.Errorf("invalid MX exchange: %w", err)
	}
	return fmt.Sprintf("%d %s", binary.BigEndian.Uint16(b), name), nil
}

// SRV: "priority weight port target"
func encodeSRV(value string) ([]byte, error) {
	parts := strings.Fields(value)
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid SRV record format (expected 4 fields): %s", value)
	}
	out := make([]byte, 0, 6+len(parts[3])+2)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid SRV field %d: %w", i, err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}
	target, err := EncodeName(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid SRV target: %w", err)
	}
	return append(out, target...), nil
}

func decodeSRV(b []byte) (string, error) {
	if len(b) < 7 {
		return "", fmt.Errorf("invalid SRV rdata length: %d", len(b))
	}
	target, err := decodeName(b[6:])
	if err != nil {
		return "", fmt.Errorf("invalid SRV target: %w", err)
	}
	return fmt.Sprintf("%d %d %d %s",
		binary.BigEndian.Uint16(b[0:]), binary.BigEndian.Uint16(b[2:]), binary.BigEndian.Uint16(b[4:]), target), nil
}

// SOA: "mname rname serial refresh retry expire minimum"
func encodeSOA(value string) ([]byte, error) {
	parts := strings.Fields(value)
	if len(parts) != 7 {
		return nil, fmt.Errorf("invalid SOA record format (expected 7 fields): %s", value)
	}
	var out []byte
	for i, field := range parts[:2] {
		name, err := EncodeName(field)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA name field %d: %w", i, err)
		}
		out = append(out, name...)
	}
	for i, field := range parts[2:] {
		v, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SOA field %d: %w", i+2, err)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(v))
	}
	return out, nil
}

func decodeSOA(b []byte) (string, error) {
	mname, n, err := DecodeName(b)
	if err != nil {
		return "", fmt.Errorf("invalid SOA mname: %w", err)
	}
	rname, m, err := DecodeName(b[n:])
	if err != nil {
		return "", fmt.Errorf("invalid SOA rname: %w", err)
	}
	rest := b[n+m:]
	if len(rest) != 20 {
		return "", fmt.Errorf("invalid SOA counters length: %d", len(rest))
	}
	return fmt.Sprintf("%s %s %d %d %d %d %d", mname, rname,
		binary.BigEndian.Uint32(rest[0:]), binary.BigEndian.Uint32(rest[4:]), binary.BigEndian.Uint32(rest[8:]),
		binary.BigEndian.Uint32(rest[12:]), binary.BigEndian.Uint32(rest[16:])), nil
}

// TXT values hold one or more character-strings separated by ';'.
func encodeTXT(value string) ([]byte, error) {
	var out []byte
	for _, seg := range strings.Split(value, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if len(seg) > 255 {
			return nil, fmt.Errorf("TXT segment too long: %d bytes", len(seg))
		}
		out = append(out, byte(len(seg)))
		out = append(out, seg...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("TXT record must contain at least one segment")
	}
	return out, nil
}

func decodeTXT(b []byte) (string, error) {
	var segs []string
	for i := 0; i < len(b); {
		n := int(b[i])
		i++
		if i+n > len(b) {
			return "", fmt.Errorf("TXT segment overruns rdata")
		}
		segs = append(segs, string(b[i:i+n]))
		i += n
	}
	return strings.Join(segs, ";"), nil
}

// CAA: `0 issue "letsencrypt.org"`. The value is opaque and kept verbatim.
func encodeCAA(value string) ([]byte, error) {
	parts := strings.Fields(value)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid CAA record format (expected: flag tag \"value\"): %s", value)
	}
	flag, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid CAA flag: %w", err)
	}
	tag := parts[1]
	if len(tag) == 0 || len(tag) > 255 {
		return nil, fmt.Errorf("invalid CAA tag length: %d", len(tag))
	}
	val := strings.Trim(strings.Join(parts[2:], " "), `"`)
	out := []byte{byte(flag), byte(len(tag))}
	out = append(out, tag...)
	return append(out, val...), nil
}

func decodeCAA(b []byte) (string, error) {
	if len(b) < 2 || len(b) < 2+int(b[1]) {
		return "", fmt.Errorf("invalid CAA rdata length: %d", len(b))
	}
	tagEnd := 2 + int(b[1])
	return fmt.Sprintf("%d %s %q", b[0], b[2:tagEnd], b[tagEnd:]), nil
}
