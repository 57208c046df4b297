// Package zone loads locally served records from zone files in YAML, JSON
// or TOML. Each file names its zone root and maps owner labels to record
// types and values:
//
//	zone_root: home.lan
//	ttl: 600
//	router:
//	  A: "192.168.1.1"
//	nas:
//	  A: ["192.168.1.10", "192.168.1.11"]
//	"@":
//	  MX: "10 mail.home.lan"
package zone

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-proxy/internal/dns/common/rrdata"
	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

const (
	keyZoneRoot = "zone_root"
	keyTTL      = "ttl"

	// Owner names contain dots, so koanf must split keys on something else.
	keyDelim = "/"
)

// LoadDirectory walks dir and loads every supported zone file, returning the
// entries of all zones sorted by name, type and value. Files with other
// extensions are skipped. Any invalid file fails the whole load.
func LoadDirectory(dir string, defaultTTL time.Duration) ([]domain.ZoneEntry, error) {
	var entries []domain.ZoneEntry

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fileEntries, err := LoadFile(path, defaultTTL)
		if err != nil {
			return fmt.Errorf("error parsing zone file %s: %w", path, err)
		}
		entries = append(entries, fileEntries...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []domain.ZoneEntry) {
	slices.SortFunc(entries, func(a, b domain.ZoneEntry) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Value, b.Value),
		)
	})
}

// parserFor picks the koanf parser for a file extension, or nil if unsupported.
func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser()
	case ".json":
		return json.Parser()
	case ".toml":
		return toml.Parser()
	default:
		return nil
	}
}

// LoadFile loads a single zone file, sorted like LoadDirectory. Unsupported
// extensions yield no entries.
func LoadFile(path string, defaultTTL time.Duration) ([]domain.ZoneEntry, error) {
	parser := parserFor(path)
	if parser == nil {
		return nil, nil
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load zone file %s: %w", path, err)
	}

	root := utils.CanonicalDNSName(k.String(keyZoneRoot))
	if root == "" {
		return nil, fmt.Errorf("zone file %s missing '%s'", path, keyZoneRoot)
	}

	ttl := uint32(defaultTTL / time.Second)
	if k.Exists(keyTTL) {
		v := k.Int64(keyTTL)
		if v < 0 || v > int64(^uint32(0)>>1) {
			return nil, fmt.Errorf("zone file %s: ttl %d out of range", path, v)
		}
		ttl = uint32(v)
	}

	var entries []domain.ZoneEntry
	for name, raw := range k.Raw() {
		if name == keyZoneRoot || name == keyTTL {
			continue
		}
		types, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("zone file %s: %q must map record types to values", path, name)
		}
		owner := expandName(name, root)
		for typeName, val := range types {
			rrtype := domain.RRTypeFromString(typeName)
			for _, value := range toStringValues(val) {
				entry, err := buildEntry(owner, rrtype, value, ttl)
				if err != nil {
					return nil, fmt.Errorf("invalid record in %s: %w", path, err)
				}
				entries = append(entries, entry)
			}
		}
	}
	sortEntries(entries)
	return entries, nil
}

// buildEntry validates one value by encoding it, so bad zone data fails at
// load time with the file name attached.
func buildEntry(owner string, rrtype domain.RRType, value string, ttl uint32) (domain.ZoneEntry, error) {
	entry, err := domain.NewZoneEntry(owner, rrtype, value, ttl)
	if err != nil {
		return domain.ZoneEntry{}, err
	}
	if _, err := rrdata.Encode(entry.Type, entry.Value); err != nil {
		return domain.ZoneEntry{}, fmt.Errorf("%s %s %q: %w", entry.Name, entry.Type, entry.Value, err)
	}
	return entry, nil
}

// expandName returns the fully qualified name for a label: "@" is the zone
// root, a trailing dot marks an absolute name, anything else is relative.
func expandName(label, root string) string {
	if label == "@" {
		return root
	}
	if strings.HasSuffix(label, ".") {
		return utils.CanonicalDNSName(label)
	}
	return utils.CanonicalDNSName(label + "." + root)
}

// toStringValues converts a parsed value (a scalar or a list of scalars) into
// trimmed, non-empty strings. Numbers are accepted so TOML and JSON files can
// write values such as TXT "1234" unquoted.
func toStringValues(val any) []string {
	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			out = append(out, toStringValues(elem)...)
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case int, int64, float64, bool:
		return []string{fmt.Sprint(v)}
	default:
		return nil
	}
}
