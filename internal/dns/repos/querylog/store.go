package querylog

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bbolt "go.etcd.io/bbolt"

	logpkg "github.com/haukened/rr-proxy/internal/dns/common/log"
	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
)

var (
	bucketQueries = []byte("queries")
	bucketByApex  = []byte("by_apex")
)

const (
	keySize     = 12 // 8 bytes of unix nanos, 4 of sequence
	openTimeout = time.Second
)

// Store keeps query events in a bbolt file. Events live in the "queries"
// bucket keyed by observation time, so iteration is chronological; the
// "by_apex" bucket counts events per registrable domain.
type Store struct {
	db     *bbolt.DB
	logger logpkg.Logger

	mu  sync.Mutex
	seq uint32
}

// Open opens or creates the query log at path.
func Open(path string, logger logpkg.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open query log %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketQueries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByApex)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info(map[string]any{"path": path}, "Query log opened")
	return &Store{db: db, logger: logger}, nil
}

// Record persists one event. A zero ObservedAt is stamped with the current time.
func (s *Store) Record(event domain.QueryEvent) error {
	if event.ObservedAt.IsZero() {
		event.ObservedAt = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode query event: %w", err)
	}
	key := s.nextKey(event.ObservedAt)
	apex := []byte(utils.GetApexDomain(event.Domain))

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketQueries).Put(key, value); err != nil {
			return err
		}
		counts := tx.Bucket(bucketByApex)
		var n uint64
		if v := counts.Get(apex); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		return counts.Put(apex, binary.BigEndian.AppendUint64(nil, n+1))
	})
}

// nextKey appends a sequence number so events sharing a timestamp keep
// their arrival order.
func (s *Store) nextKey(at time.Time) []byte {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	key := make([]byte, 0, keySize)
	key = binary.BigEndian.AppendUint64(key, uint64(at.UnixNano()))
	return binary.BigEndian.AppendUint32(key, seq)
}

// Count returns the number of stored events.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketQueries).Stats().KeyN
		return nil
	})
	return n, err
}

// ApexCount returns how many events were recorded under the apex domain of name.
func (s *Store) ApexCount(name string) (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketByApex).Get([]byte(utils.GetApexDomain(name))); len(v) == 8 {
			n = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return n, err
}

// Each calls fn for every event, oldest first, until fn returns false.
func (s *Store) Each(fn func(domain.QueryEvent) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketQueries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var event domain.QueryEvent
			if err := json.Unmarshal(v, &event); err != nil {
				s.logger.Warn(map[string]any{"key": fmt.Sprintf("%x", k), "error": err}, "Skipping unreadable query log entry")
				continue
			}
			if !fn(event) {
				return nil
			}
		}
		return nil
	})
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ Sink = (*Store)(nil)
