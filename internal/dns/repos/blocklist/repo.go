package blocklist

import (
	"sync"
	"sync/atomic"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

// DefaultFPRate is the Bloom false-positive target used when none is configured.
const DefaultFPRate = 0.01

const suffixKeyPrefix = "*."

// repository composes a DecisionCache, a Bloom filter and a Store into a
// cache → bloom → store pipeline. Updates rebuild the store, then swap the
// filter and purge the cache under one lock.
type repository struct {
	mu      sync.RWMutex
	store   Store
	cache   DecisionCache
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
	logger  logpkg.Logger

	bloomMisses atomic.Uint64
	storeErrors atomic.Uint64
}

// NewRepository wires the three layers together. Until the first UpdateAll
// there is no filter and every cache miss goes to the store.
func NewRepository(store Store, cache DecisionCache, factory BloomFactory, fpRate float64, logger logpkg.Logger) Repository {
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = DefaultFPRate
	}
	return &repository{store: store, cache: cache, factory: factory, fpRate: fpRate, logger: logger}
}

// Decide reports whether name is blocked. Store errors allow the query.
func (r *repository) Decide(name string) domain.BlockDecision {
	cn := utils.CanonicalDNSName(name)
	if cn == "" {
		return domain.Allowed()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.cache.Get(cn); ok {
		return d
	}
	if !r.mightBlock(cn) {
		r.bloomMisses.Add(1)
		return domain.Allowed()
	}

	dec := domain.Allowed()
	rule, ok, err := r.store.GetFirstMatch(cn)
	switch {
	case err != nil:
		r.storeErrors.Add(1)
		r.logger.Warn(map[string]any{"name": cn, "error": err}, "Blocklist store lookup failed")
		return dec
	case ok:
		dec = domain.BlockDecision{Blocked: true, MatchedRule: rule.Name, Source: rule.Source, Kind: rule.Kind}
	}
	r.cache.Put(cn, dec)
	return dec
}

// mightBlock checks the filter for the exact key and for a suffix key at
// every ancestor. A nil filter means "ask the store".
func (r *repository) mightBlock(cn string) bool {
	if r.bloom == nil {
		return true
	}
	if r.bloom.MightContain(bloomKey(cn, domain.BlockRuleExact)) {
		return true
	}
	for _, parent := range utils.ParentDomains(cn) {
		if r.bloom.MightContain(bloomKey(parent, domain.BlockRuleSuffix)) {
			return true
		}
	}
	return false
}

func bloomKey(name string, kind domain.BlockRuleKind) []byte {
	if kind == domain.BlockRuleSuffix {
		return []byte(suffixKeyPrefix + name)
	}
	return []byte(name)
}

// UpdateAll replaces the rule set. The store is rebuilt first; if that
// fails the previous filter and cache stay in place.
func (r *repository) UpdateAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error {
	if err := r.store.RebuildAll(rules, version, updatedUnix); err != nil {
		return err
	}

	bf := r.factory.New(uint64(len(rules)), r.fpRate)
	for _, rule := range rules {
		bf.Add(bloomKey(rule.Name, rule.Kind))
	}

	r.mu.Lock()
	r.bloom = bf
	r.cache.Purge()
	r.mu.Unlock()

	r.logger.Info(map[string]any{"rules": len(rules), "version": version}, "Blocklist updated")
	return nil
}

func (r *repository) Stats() RepoStats {
	return RepoStats{
		Cache:       r.cache.Stats(),
		Store:       r.store.Stats(),
		BloomMisses: r.bloomMisses.Load(),
		StoreErrors: r.storeErrors.Load(),
	}
}

// NoopRepository never blocks anything. It stands in when no blocklist is configured.
type NoopRepository struct{}

func (NoopRepository) Decide(string) domain.BlockDecision                { return domain.Allowed() }
func (NoopRepository) UpdateAll([]domain.BlockRule, uint64, int64) error { return nil }
func (NoopRepository) Stats() RepoStats                                  { return RepoStats{} }

var (
	_ Repository = (*repository)(nil)
	_ Repository = NoopRepository{}
)
