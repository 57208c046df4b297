// Package utils holds small name helpers shared across the proxy.
//
// Names are byte strings in presentation form: labels are separated by '.',
// and "\." or "\\" inside a label stand for a literal dot or backslash. Case
// folding touches ASCII letters only, so names carrying arbitrary bytes keep
// their identity.
package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName lowercases and trims a name and strips any trailing dots,
// so "WWW.Example.COM." and "www.example.com" compare equal.
func CanonicalDNSName(name string) string {
	return asciiLower(trimRoot(strings.Trim(name, " \t\r\n")))
}

// EqualNames reports whether two names are the same ignoring ASCII case and
// a trailing dot.
func EqualNames(a, b string) bool {
	a, b = trimRoot(a), trimRoot(b)
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerByte(a[i]) != lowerByte(b[i]) {
			return false
		}
	}
	return true
}

// GetApexDomain returns the registrable domain (eTLD+1) of name, falling back
// to the canonical name itself when the public suffix list has no answer.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

// ReverseLabels reverses the label order of a canonical name:
// "ads.example.com" becomes "com.example.ads". Reversed names sort so that
// every subdomain shares its parent's key as a prefix. Escaped dots stay
// inside their label.
func ReverseLabels(name string) string {
	labels := splitLabels(CanonicalDNSName(name))
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ".")
}

// ParentDomains lists name and each of its ancestors, most specific first,
// stopping before the root: "a.b.c" yields ["a.b.c", "b.c", "c"].
func ParentDomains(name string) []string {
	labels := splitLabels(CanonicalDNSName(name))
	out := make([]string, 0, len(labels))
	for i := range labels {
		out = append(out, strings.Join(labels[i:], "."))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitLabels splits on unescaped dots and keeps each label in its escaped
// form, so joining the result with "." gives back the input.
func splitLabels(name string) []string {
	if name == "" {
		return nil
	}
	var labels []string
	start := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '\\':
			i++
		case '.':
			labels = append(labels, name[start:i])
			start = i + 1
		}
	}
	return append(labels, name[start:])
}

// trimRoot strips trailing dots that end the name, leaving an escaped dot
// in place.
func trimRoot(name string) string {
	for strings.HasSuffix(name, ".") && !escapedAt(name, len(name)-1) {
		name = name[:len(name)-1]
	}
	return name
}

// escapedAt reports whether the byte at i is preceded by an odd run of
// backslashes.
func escapedAt(name string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && name[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				b[j] = lowerByte(b[j])
			}
			return string(b)
		}
	}
	return s
}

func lowerByte(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
