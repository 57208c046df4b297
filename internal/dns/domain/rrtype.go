package domain

import (
	"fmt"
	"strings"
)

// RRType represents a DNS resource record type (e.g. A, AAAA, MX).
// See IANA DNS Parameters for assigned codes.
type RRType uint16

const (
	RRTypeA      RRType = 1   // IPv4 address
	RRTypeNS     RRType = 2   // name server
	RRTypeCNAME  RRType = 5   // canonical name
	RRTypeSOA    RRType = 6   // start of authority
	RRTypePTR    RRType = 12  // pointer
	RRTypeMX     RRType = 15  // mail exchange
	RRTypeTXT    RRType = 16  // text
	RRTypeAAAA   RRType = 28  // IPv6 address
	RRTypeSRV    RRType = 33  // service locator
	RRTypeNAPTR  RRType = 35  // naming authority pointer
	RRTypeOPT    RRType = 41  // EDNS pseudo-record
	RRTypeDS     RRType = 43  // delegation signer
	RRTypeRRSIG  RRType = 46  // record signature
	RRTypeNSEC   RRType = 47  // next secure
	RRTypeDNSKEY RRType = 48  // DNS key
	RRTypeTLSA   RRType = 52  // TLS association
	RRTypeSVCB   RRType = 64  // service binding
	RRTypeHTTPS  RRType = 65  // HTTPS binding
	RRTypeANY    RRType = 255 // any type, query only
	RRTypeCAA    RRType = 257 // certification authority authorization
)

var rrTypeNames = map[RRType]string{
	RRTypeA: "A", RRTypeNS: "NS", RRTypeCNAME: "CNAME", RRTypeSOA: "SOA",
	RRTypePTR: "PTR", RRTypeMX: "MX", RRTypeTXT: "TXT", RRTypeAAAA: "AAAA",
	RRTypeSRV: "SRV", RRTypeNAPTR: "NAPTR", RRTypeOPT: "OPT", RRTypeDS: "DS",
	RRTypeRRSIG: "RRSIG", RRTypeNSEC: "NSEC", RRTypeDNSKEY: "DNSKEY", RRTypeTLSA: "TLSA",
	RRTypeSVCB: "SVCB", RRTypeHTTPS: "HTTPS", RRTypeANY: "ANY", RRTypeCAA: "CAA",
}

var rrTypeByName = func() map[string]RRType {
	m := make(map[string]RRType, len(rrTypeNames))
	for t, n := range rrTypeNames {
		m[n] = t
	}
	return m
}()

// IsKnown reports whether the type has a mnemonic. Unknown types are still
// relayed verbatim; this only matters for zone loading and log rendering.
func (t RRType) IsKnown() bool {
	_, ok := rrTypeNames[t]
	return ok
}

// String returns the mnemonic, or "UNKNOWN(<n>)".
func (t RRType) String() string {
	if n, ok := rrTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
}

// RRTypeFromString maps a mnemonic (case-insensitive) to its RRType, or 0.
func RRTypeFromString(s string) RRType {
	return rrTypeByName[strings.ToUpper(strings.TrimSpace(s))]
}
