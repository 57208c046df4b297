package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
)

// BlockRuleKind defines how a rule matches names.
type BlockRuleKind uint8

const (
	// BlockRuleExact matches only the named domain.
	BlockRuleExact BlockRuleKind = iota
	// BlockRuleSuffix matches the domain and every subdomain beneath it.
	BlockRuleSuffix
)

func (k BlockRuleKind) String() string {
	switch k {
	case BlockRuleExact:
		return "exact"
	case BlockRuleSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("BlockRuleKind(%d)", uint8(k))
	}
}

// BlockRule is a single blocking rule loaded from a list file.
type BlockRule struct {
	Name    string // canonical, no trailing dot
	Kind    BlockRuleKind
	Source  string
	AddedAt time.Time
}

// NewBlockRule canonicalizes the name and validates the rule.
func NewBlockRule(name string, kind BlockRuleKind, source string, addedAt time.Time) (BlockRule, error) {
	r := BlockRule{
		Name:    utils.CanonicalDNSName(name),
		Kind:    kind,
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return BlockRule{}, err
	}
	return r, nil
}

// Validate checks the rule for required fields and supported values.
func (r BlockRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	if r.Kind != BlockRuleExact && r.Kind != BlockRuleSuffix {
		return fmt.Errorf("unsupported BlockRuleKind: %d", r.Kind)
	}
	return nil
}

// BlockDecision is the outcome of checking a name against the blocklist.
type BlockDecision struct {
	Blocked     bool
	MatchedRule string
	Source      string
	Kind        BlockRuleKind
}

// Allowed returns a not-blocked decision.
func Allowed() BlockDecision { return BlockDecision{} }

// IsExact reports whether the rule matches only its own name.
func (r BlockRule) IsExact() bool { return r.Kind == BlockRuleExact }

// IsSuffix reports whether the rule also matches subdomains.
func (r BlockRule) IsSuffix() bool { return r.Kind == BlockRuleSuffix }
