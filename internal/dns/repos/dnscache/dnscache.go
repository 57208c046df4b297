// Package dnscache keeps recently forwarded upstream answers so repeated
// questions can be answered without another round trip.
package dnscache

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-proxy/internal/dns/common/clock"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

var (
	ErrNotCacheable = errors.New("message has no records with a positive TTL")
)

type entry struct {
	msg       domain.Message
	storedAt  time.Time
	expiresAt time.Time
}

// dnsCache is an in-memory TTL-aware cache of whole upstream messages using an
// LRU strategy. Entries live for the smallest TTL among their answer and
// authority records; reads age every TTL by the time spent in the cache.
type dnsCache struct {
	lru   *lru.Cache[string, entry]
	clock clock.Clock
}

// New returns a cache holding at most size messages.
func New(size int, clk clock.Clock) (*dnsCache, error) {
	cache, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &dnsCache{lru: cache, clock: clk}, nil
}

// Set stores a copy of msg as the answer to q. Messages without a record
// carrying a positive TTL are rejected with ErrNotCacheable.
func (c *dnsCache) Set(q domain.Question, msg domain.Message) error {
	ttl, ok := msg.MinTTL()
	if !ok || ttl == 0 {
		return ErrNotCacheable
	}
	now := c.clock.Now()
	c.lru.Add(q.CacheKey(), entry{
		msg:       msg.Clone(),
		storedAt:  now,
		expiresAt: now.Add(time.Duration(ttl) * time.Second),
	})
	return nil
}

// Get returns a copy of the cached answer to q with TTLs reduced by the
// whole seconds it has been cached. Expired entries are removed.
func (c *dnsCache) Get(q domain.Question) (domain.Message, bool) {
	key := q.CacheKey()
	e, found := c.lru.Get(key)
	if !found {
		return domain.Message{}, false
	}
	now := c.clock.Now()
	if !now.Before(e.expiresAt) {
		c.lru.Remove(key)
		return domain.Message{}, false
	}

	elapsed := uint32(now.Sub(e.storedAt) / time.Second)
	msg := e.msg.Clone()
	for _, section := range [][]domain.ResourceRecord{msg.Answers, msg.Authority, msg.Additional} {
		for i := range section {
			if section[i].Type == domain.RRTypeOPT {
				continue
			}
			if section[i].TTL > elapsed {
				section[i].TTL -= elapsed
			} else {
				section[i].TTL = 0
			}
		}
	}
	return msg, true
}

// Delete removes the entry for q from the cache.
func (c *dnsCache) Delete(q domain.Question) {
	c.lru.Remove(q.CacheKey())
}

// Len returns the number of cached messages.
func (c *dnsCache) Len() int {
	return c.lru.Len()
}

// Keys returns a slice of all current cache keys, oldest first.
func (c *dnsCache) Keys() []string {
	return c.lru.Keys()
}

// Purge empties the cache.
func (c *dnsCache) Purge() {
	c.lru.Purge()
}
