// Package parsers turns blocklist files into domain.BlockRule values. Two
// formats are understood: plain lists of names (one per line, "*." or "."
// marking a suffix rule) and /etc/hosts-style files.
package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

const bom = "\ufeff"

// ruleKindFromRaw decides the BlockRuleKind based on the raw, uncanonicalized input.
// Returns BlockRuleSuffix if the name begins with "*." or ".", otherwise BlockRuleExact.
func ruleKindFromRaw(raw string) domain.BlockRuleKind {
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.BlockRuleSuffix
	}
	return domain.BlockRuleExact
}

// isValidFQDN reports whether name has at least two labels of 1 to 63
// bytes, fits in 255 bytes, and starts with a letter or digit.
func isValidFQDN(name string) bool {
	if len(name) == 0 || len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	first := []rune(labels[0])[0]
	return unicode.IsLetter(first) || unicode.IsDigit(first)
}

// normalizeDomainName strips a leading "*." or "." suffix marker and returns
// the canonical name.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalDNSName(name)
}

// stripLineBOM removes a byte order mark at the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, bom)
}

// classifyLine reports whether a line is blank or a whole-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// eachEntry calls fn with the 1-based line number and comment-free text of
// every line that is neither blank nor a whole-line comment.
func eachEntry(r io.Reader, fn func(lineNum int, text string)) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())
		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}
		fn(lineNum, stripInlineComment(line))
	}
	return scanner.Err()
}

// ruleSet collects rules in first-seen order, ignoring repeats of a name and
// kind pair.
type ruleSet struct {
	source string
	now    time.Time
	seen   map[string]struct{}
	rules  []domain.BlockRule
}

func newRuleSet(source string, now time.Time) *ruleSet {
	return &ruleSet{
		source: source,
		now:    now,
		seen:   make(map[string]struct{}),
		rules:  make([]domain.BlockRule, 0, 256),
	}
}

// add records a rule unless it was seen before. Rules the domain rejects
// are not recorded and their error is returned.
func (s *ruleSet) add(name string, kind domain.BlockRuleKind) error {
	key := kind.String() + ":" + name
	if _, ok := s.seen[key]; ok {
		return nil
	}
	rule, err := domain.NewBlockRule(name, kind, s.source, s.now)
	if err != nil {
		return err
	}
	s.seen[key] = struct{}{}
	s.rules = append(s.rules, rule)
	return nil
}
