// Package rrdata converts record data between presentation text (zone files,
// query log) and wire form. Names inside wire rdata are expected uncompressed;
// the wire codec expands them before records reach this package.
package rrdata

import (
	"encoding/hex"
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

type codec struct {
	encode func(string) ([]byte, error)
	decode func([]byte) (string, error)
}

var codecs = map[domain.RRType]codec{
	domain.RRTypeA:     {encodeA, decodeA},
	domain.RRTypeNS:    {encodeName, decodeName},
	domain.RRTypeCNAME: {encodeName, decodeName},
	domain.RRTypeSOA:   {encodeSOA, decodeSOA},
	domain.RRTypePTR:   {encodeName, decodeName},
	domain.RRTypeMX:    {encodeMX, decodeMX},
	domain.RRTypeTXT:   {encodeTXT, decodeTXT},
	domain.RRTypeAAAA:  {encodeAAAA, decodeAAAA},
	domain.RRTypeSRV:   {encodeSRV, decodeSRV},
	domain.RRTypeCAA:   {encodeCAA, decodeCAA},
}

// Supported reports whether values of type t can be encoded from text.
func Supported(t domain.RRType) bool {
	_, ok := codecs[t]
	return ok
}

// Encode converts a presentation value of type t to wire rdata.
func Encode(t domain.RRType, value string) ([]byte, error) {
	c, ok := codecs[t]
	if !ok {
		return nil, fmt.Errorf("%s record encoding not supported", t)
	}
	return c.encode(value)
}

// Decode renders wire rdata of type t as presentation text. Types without a
// dedicated decoder use the generic RFC 3597 form `\# <len> <hex>`.
func Decode(t domain.RRType, data []byte) (string, error) {
	if c, ok := codecs[t]; ok {
		return c.decode(data)
	}
	return fmt.Sprintf(`\# %d %s`, len(data), hex.EncodeToString(data)), nil
}
