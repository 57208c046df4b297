package rrdata

import (
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// EncodeName writes name as uncompressed wire labels ending with the root byte.
func EncodeName(name string) ([]byte, error) {
	labels, err := domain.SplitLabels(utils.CanonicalDNSName(name))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(name)+2)
	for _, l := range labels {
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	return append(out, 0), nil
}

// DecodeName reads one uncompressed name from the front of b and returns it
// with the number of bytes consumed.
func DecodeName(b []byte) (string, int, error) {
	var labels []string
	for i := 0; i < len(b); {
		n := int(b[i])
		i++
		if n == 0 {
			return domain.JoinLabels(labels), i, nil
		}
		if n > domain.MaxLabelLength {
			return "", 0, fmt.Errorf("unexpected label byte 0x%02x in rdata name", n)
		}
		if i+n > len(b) {
			return "", 0, fmt.Errorf("rdata name overruns %d byte buffer", len(b))
		}
		labels = append(labels, string(b[i:i+n]))
		i += n
	}
	return "", 0, fmt.Errorf("rdata name missing root label")
}

func encodeName(value string) ([]byte, error) {
	return EncodeName(value)
}

func decodeName(b []byte) (string, error) {
	name, n, err := DecodeName(b)
	if err != nil {
		return "", err
	}
	if n != len(b) {
		return "", fmt.Errorf("%d trailing bytes after name", len(b)-n)
	}
	return name, nil
}
