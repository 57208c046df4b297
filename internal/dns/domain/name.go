package domain

import (
	"fmt"
	"strings"
)

const (
	// MaxLabelLength is the longest label allowed on the wire.
	MaxLabelLength = 63
	// MaxNameLength bounds the encoded length of a name, length bytes and root included.
	MaxNameLength = 255
)

// SplitLabels breaks a presentation name into raw labels. A trailing dot is
// optional and the root name is "" or ".". Inside a label, "\." stands for a
// literal dot and "\\" for a backslash.
func SplitLabels(name string) ([]string, error) {
	if name == "" || name == "." {
		return nil, nil
	}
	var (
		labels []string
		cur    strings.Builder
		wire   = 1 // root byte
	)
	flush := func() error {
		l := cur.String()
		if l == "" {
			return fmt.Errorf("%w: empty label in %q", ErrInvalidName, name)
		}
		if len(l) > MaxLabelLength {
			return fmt.Errorf("%w: label %q exceeds %d bytes", ErrInvalidName, l, MaxLabelLength)
		}
		wire += len(l) + 1
		labels = append(labels, l)
		cur.Reset()
		return nil
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '\\' && i+1 < len(name):
			i++
			cur.WriteByte(name[i])
		case c == '.':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if wire > MaxNameLength {
		return nil, fmt.Errorf("%w: %q encodes to %d bytes", ErrInvalidName, name, wire)
	}
	return labels, nil
}

// JoinLabels is the inverse of SplitLabels; it escapes dots and backslashes
// inside labels and returns "" for the root.
func JoinLabels(labels []string) string {
	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteByte('.')
		}
		for j := 0; j < len(l); j++ {
			if l[j] == '.' || l[j] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(l[j])
		}
	}
	return b.String()
}

// ValidateName checks that name can be encoded on the wire.
func ValidateName(name string) error {
	_, err := SplitLabels(name)
	return err
}
