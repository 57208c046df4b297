// Package blocklist decides whether a query name is blocked. Decisions flow
// through three layers: an LRU of recent decisions, a Bloom filter that
// rules out most names without touching disk, and a persistent store that
// holds the rules themselves.
package blocklist

import "github.com/haukened/rr-proxy/internal/dns/domain"

// BloomFilter is the negative pre-check in front of the store.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
	Clear()
}

// BloomFactory builds filters sized for capacity keys at fpRate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches decisions by canonical name.
type DecisionCache interface {
	Get(name string) (domain.BlockDecision, bool)
	Put(name string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the persistent rule index.
type Store interface {
	GetFirstMatch(name string) (domain.BlockRule, bool, error)
	RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
	Purge() error
	Stats() StoreStats
	Close() error
}

// Repository answers block decisions and swaps in new rule sets.
type Repository interface {
	Decide(name string) domain.BlockDecision
	UpdateAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error
	Stats() RepoStats
}

// CacheStats is a best-effort snapshot of decision cache counters.
type CacheStats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// StoreStats reports store contents and metadata.
type StoreStats struct {
	Version     uint64
	UpdatedUnix int64 // seconds since epoch, 0 if never built
	ExactKeys   uint64
	SuffixKeys  uint64
}

// RepoStats combines the layers' counters.
type RepoStats struct {
	Cache       CacheStats
	Store       StoreStats
	BloomMisses uint64 // lookups answered by the filter alone
	StoreErrors uint64
}
