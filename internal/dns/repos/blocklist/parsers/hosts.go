package parsers

import (
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// ParseHostsFile reads /etc/hosts-style lines ("0.0.0.0 ads.example.com
// tracker.example.com") and returns one exact rule per hostname. The address
// column is ignored, so sinkhole lists pointing at 0.0.0.0 or 127.0.0.1 load
// the same way.
//
// Hosts files cannot express suffix rules: tokens with a leading dot or a
// '*' are skipped, as are single-label names and repeats.
func ParseHostsFile(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	set := newRuleSet(source, now)

	err := eachEntry(r, func(lineNum int, text string) {
		fields := strings.Fields(text)
		if len(fields) < 2 {
			logger.Debug(map[string]any{"source": source, "line": lineNum}, "Hosts line has no hostnames")
			return
		}
		for _, token := range fields[1:] {
			if strings.HasPrefix(token, ".") || strings.Contains(token, "*") {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "token": token}, "Skipping wildcard hosts entry")
				continue
			}
			name := utils.CanonicalDNSName(token)
			if !isValidFQDN(name) {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "name": name}, "Skipping invalid hostname")
				continue
			}
			if err := set.add(name, domain.BlockRuleExact); err != nil {
				logger.Debug(map[string]any{"source": source, "line": lineNum, "error": err}, "Skipping hosts entry")
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return set.rules, nil
}
