package zonetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-proxy/internal/dns/domain"
)

func testEntries() []domain.ZoneEntry {
	return []domain.ZoneEntry{
		{Name: "router.home.lan", Type: domain.RRTypeA, Value: "192.168.1.1", TTL: 300},
		{Name: "NAS.home.lan.", Type: domain.RRTypeA, Value: "192.168.1.10", TTL: 60},
		{Name: "nas.home.lan", Type: domain.RRTypeA, Value: "192.168.1.11", TTL: 60},
		{Name: "nas.home.lan", Type: domain.RRTypeTXT, Value: "backup target", TTL: 60},
		{Name: "home.lan", Type: domain.RRTypeMX, Value: "10 mail.home.lan", TTL: 3600},
	}
}

func TestNew(t *testing.T) {
	table, err := New(testEntries())
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())
	assert.Equal(t, []string{"home.lan", "nas.home.lan", "router.home.lan"}, table.Names())
}

func TestNew_RejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry domain.ZoneEntry
	}{
		{"bad address", domain.ZoneEntry{Name: "a.lan", Type: domain.RRTypeA, Value: "nope"}},
		{"empty name", domain.ZoneEntry{Name: ".", Type: domain.RRTypeA, Value: "1.1.1.1"}},
		{"unsupported type", domain.ZoneEntry{Name: "a.lan", Type: domain.RRTypeANY, Value: "x"}},
		{"empty value", domain.ZoneEntry{Name: "a.lan", Type: domain.RRTypeTXT}},
		{"not encodable", domain.ZoneEntry{Name: "a.lan", Type: domain.RRTypeNAPTR, Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(append(testEntries(), tt.entry))
			assert.Error(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	table, err := New(testEntries())
	require.NoError(t, err)

	records, ok := table.Lookup("Router.Home.LAN.", domain.RRTypeA)
	require.True(t, ok)
	assert.Equal(t, []domain.ResourceRecord{
		{Name: "router.home.lan", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 300, Data: []byte{192, 168, 1, 1}},
	}, records)

	records, ok = table.Lookup("nas.home.lan", domain.RRTypeA)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, []byte{192, 168, 1, 10}, records[0].Data)
	assert.Equal(t, []byte{192, 168, 1, 11}, records[1].Data)
}

func TestLookup_Misses(t *testing.T) {
	table, err := New(testEntries())
	require.NoError(t, err)

	tests := []struct {
		name  string
		qname string
		qtype domain.RRType
	}{
		{"unknown name", "printer.home.lan", domain.RRTypeA},
		{"known name other type", "router.home.lan", domain.RRTypeAAAA},
		{"no wildcard", "x.router.home.lan", domain.RRTypeA},
		{"parent only", "lan", domain.RRTypeA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, ok := table.Lookup(tt.qname, tt.qtype)
			assert.False(t, ok)
			assert.Nil(t, records)
		})
	}
	assert.True(t, table.HasName("ROUTER.home.lan"))
	assert.False(t, table.HasName("printer.home.lan"))
}

func TestLookup_Any(t *testing.T) {
	table, err := New(testEntries())
	require.NoError(t, err)

	records, ok := table.Lookup("nas.home.lan", domain.RRTypeANY)
	require.True(t, ok)
	assert.Len(t, records, 3)

	_, ok = table.Lookup("missing.home.lan", domain.RRTypeANY)
	assert.False(t, ok)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	table, err := New(testEntries())
	require.NoError(t, err)

	records, _ := table.Lookup("router.home.lan", domain.RRTypeA)
	records[0].TTL = 1
	again, _ := table.Lookup("router.home.lan", domain.RRTypeA)
	assert.Equal(t, uint32(300), again[0].TTL)
}

func TestNilAndEmptyTable(t *testing.T) {
	var nilTable *Table
	_, ok := nilTable.Lookup("a", domain.RRTypeA)
	assert.False(t, ok)
	assert.Zero(t, nilTable.Len())
	assert.Nil(t, nilTable.Names())
	assert.False(t, nilTable.HasName("a"))

	empty, err := New(nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.Names())
}
