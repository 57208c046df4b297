// Package zonetable holds the locally authoritative records the proxy answers
// without asking upstream. A Table is built once from zone entries and is
// read-only afterwards, so lookups need no locking.
package zonetable

import (
	"fmt"
	"slices"

	"github.com/haukened/rr-proxy/internal/dns/common/rrdata"
	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

type key struct {
	name   string
	rrtype domain.RRType
}

// Table is an immutable (name, type) index of resource records.
type Table struct {
	records map[key][]domain.ResourceRecord
	names   map[string][]domain.RRType
	count   int
}

// New converts each entry's presentation value to wire rdata and indexes the
// result. An invalid entry fails the whole table.
func New(entries []domain.ZoneEntry) (*Table, error) {
	t := &Table{
		records: make(map[key][]domain.ResourceRecord),
		names:   make(map[string][]domain.RRType),
	}
	for _, e := range entries {
		e.Name = utils.CanonicalDNSName(e.Name)
		if err := e.Validate(); err != nil {
			return nil, err
		}
		data, err := rrdata.Encode(e.Type, e.Value)
		if err != nil {
			return nil, fmt.Errorf("zone entry %s %s %q: %w", e.Name, e.Type, e.Value, err)
		}
		k := key{name: e.Name, rrtype: e.Type}
		if _, seen := t.records[k]; !seen {
			t.names[e.Name] = append(t.names[e.Name], e.Type)
		}
		t.records[k] = append(t.records[k], domain.ResourceRecord{
			Name:  e.Name,
			Type:  e.Type,
			Class: domain.RRClassIN,
			TTL:   e.TTL,
			Data:  data,
		})
		t.count++
	}
	return t, nil
}

// Lookup returns the records for an exact, case-insensitive match of name
// and qtype. A trailing dot is ignored. An ANY query returns every record
// held for the name. The returned slice is a copy.
func (t *Table) Lookup(name string, qtype domain.RRType) ([]domain.ResourceRecord, bool) {
	if t == nil {
		return nil, false
	}
	name = utils.CanonicalDNSName(name)
	if qtype == domain.RRTypeANY {
		var out []domain.ResourceRecord
		for _, rrtype := range t.names[name] {
			out = append(out, t.records[key{name: name, rrtype: rrtype}]...)
		}
		return out, len(out) > 0
	}
	records, ok := t.records[key{name: name, rrtype: qtype}]
	if !ok {
		return nil, false
	}
	return slices.Clone(records), true
}

// HasName reports whether the table holds any record for name.
func (t *Table) HasName(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.names[utils.CanonicalDNSName(name)]
	return ok
}

// Len returns the number of records in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// Names returns the owner names in the table, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.names))
	for name := range t.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
