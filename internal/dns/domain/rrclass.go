package domain

import "fmt"

// RRClass represents a DNS class (usually IN for Internet).
type RRClass uint16

const (
	RRClassIN   RRClass = 1   // Internet
	RRClassCH   RRClass = 3   // Chaos
	RRClassHS   RRClass = 4   // Hesiod
	RRClassNONE RRClass = 254 // none
	RRClassANY  RRClass = 255 // any class, query only
)

// String returns the class mnemonic. OPT records reuse the class field for the
// advertised payload size, so unknown values print numerically.
func (c RRClass) String() string {
	switch c {
	case RRClassIN:
		return "IN"
	case RRClassCH:
		return "CH"
	case RRClassHS:
		return "HS"
	case RRClassNONE:
		return "NONE"
	case RRClassANY:
		return "ANY"
	default:
		return fmt.Sprintf("CLASS%d", uint16(c))
	}
}
