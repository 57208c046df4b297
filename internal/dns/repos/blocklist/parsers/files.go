package parsers

import (
	"bufio"
	"bytes"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// Format identifies a blocklist file layout.
type Format int

const (
	FormatPlain Format = iota
	FormatHosts
)

// DetectFormat looks at the first meaningful line: a leading IP address
// followed by a name means a hosts file, anything else a plain list.
func DetectFormat(data []byte) Format {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}
		fields := strings.Fields(stripInlineComment(line))
		if len(fields) >= 2 {
			if _, err := netip.ParseAddr(fields[0]); err == nil {
				return FormatHosts
			}
		}
		return FormatPlain
	}
	return FormatPlain
}

// LoadFiles parses every path, detecting each file's format, and returns the
// rules in file order. Each rule's source is its path.
func LoadFiles(paths []string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	var rules []domain.BlockRule
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read blocklist %s: %w", path, err)
		}

		var parsed []domain.BlockRule
		switch DetectFormat(data) {
		case FormatHosts:
			parsed, err = ParseHostsFile(bytes.NewReader(data), path, logger, now)
		default:
			parsed, err = ParsePlainList(bytes.NewReader(data), path, logger, now)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse blocklist %s: %w", path, err)
		}

		logger.Info(map[string]any{"path": path, "rules": len(parsed)}, "Loaded blocklist file")
		rules = append(rules, parsed...)
	}
	return rules, nil
}
