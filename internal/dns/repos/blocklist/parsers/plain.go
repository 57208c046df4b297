package parsers

import (
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// ParsePlainList reads one domain per line. A leading "*." or "." turns the
// entry into a suffix rule, which blocks the name and everything below it;
// anything else is an exact rule.
//
// A name may appear once as exact and once as suffix. Later repeats of the
// same pair are dropped and the first-seen order is kept.
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.BlockRule, error) {
	set := newRuleSet(source, now)

	err := eachEntry(r, func(lineNum int, text string) {
		raw := strings.TrimSpace(text)
		name := normalizeDomainName(raw)
		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "raw": raw}, "Skipping invalid blocklist entry")
			return
		}
		if err := set.add(name, ruleKindFromRaw(raw)); err != nil {
			logger.Debug(map[string]any{"source": source, "line": lineNum, "error": err}, "Skipping blocklist entry")
		}
	})
	if err != nil {
		return nil, err
	}
	return set.rules, nil
}
