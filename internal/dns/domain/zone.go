package domain

import (
	"fmt"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
)

// ZoneEntry is one locally served record in presentation form, as read from
// a zone file. Entries are immutable once loaded into a zone table.
type ZoneEntry struct {
	Name  string
	Type  RRType
	Value string
	TTL   uint32
}

// NewZoneEntry canonicalizes the owner name and validates the entry.
func NewZoneEntry(name string, rrtype RRType, value string, ttl uint32) (ZoneEntry, error) {
	e := ZoneEntry{
		Name:  utils.CanonicalDNSName(name),
		Type:  rrtype,
		Value: value,
		TTL:   ttl,
	}
	if err := e.Validate(); err != nil {
		return ZoneEntry{}, err
	}
	return e, nil
}

// Validate checks the entry's name, type and value are usable.
func (e ZoneEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("zone entry name must not be empty")
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if !e.Type.IsKnown() || e.Type == RRTypeANY || e.Type == RRTypeOPT {
		return fmt.Errorf("zone entry %s: unsupported type %s", e.Name, e.Type)
	}
	if e.Value == "" {
		return fmt.Errorf("zone entry %s %s: empty value", e.Name, e.Type)
	}
	return nil
}
