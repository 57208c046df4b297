// Package bolt persists blocklist rules in a bbolt file so a restart does not
// need to re-parse every list before answering.
//
// Layout:
//
//	exact/<name>            -> rule value
//	suffix/<reversed name>  -> rule value
//	meta/version, meta/updated
//
// A rule value is the 8-byte big-endian AddedAt (unix nanoseconds) followed
// by the source string.
package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-proxy/internal/dns/common/utils"
	"github.com/haukened/rr-proxy/internal/dns/domain"
	"github.com/haukened/rr-proxy/internal/dns/repos/blocklist"
)

var (
	bucketExact  = []byte("exact")
	bucketSuffix = []byte("suffix")
	bucketMeta   = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

const openTimeout = time.Second

type boltStore struct {
	db *bbolt.DB
}

// New opens or creates the database at path and makes sure every bucket exists.
func New(path string) (blocklist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist store %s: %w", path, err)
	}
	if err := db.Update(createBuckets); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// GetFirstMatch returns the rule that blocks name. Exact rules win; after
// that the most specific suffix rule does.
func (s *boltStore) GetFirstMatch(name string) (domain.BlockRule, bool, error) {
	name = utils.CanonicalDNSName(name)
	var (
		rule  domain.BlockRule
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketExact).Get([]byte(name)); v != nil {
			r, err := decodeRule(name, domain.BlockRuleExact, v)
			rule, found = r, err == nil
			return err
		}
		suffixes := tx.Bucket(bucketSuffix)
		for _, parent := range utils.ParentDomains(name) {
			if v := suffixes.Get([]byte(utils.ReverseLabels(parent))); v != nil {
				r, err := decodeRule(parent, domain.BlockRuleSuffix, v)
				rule, found = r, err == nil
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.BlockRule{}, false, err
	}
	return rule, found, nil
}

// RebuildAll replaces every rule in a single transaction. Readers see
// either the old set or the new one.
func (s *boltStore) RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBuckets(tx); err != nil {
			return err
		}
		exact := tx.Bucket(bucketExact)
		suffix := tx.Bucket(bucketSuffix)
		for _, r := range rules {
			v := encodeRule(r)
			var err error
			switch r.Kind {
			case domain.BlockRuleExact:
				err = exact.Put([]byte(r.Name), v)
			case domain.BlockRuleSuffix:
				err = suffix.Put([]byte(utils.ReverseLabels(r.Name)), v)
			default:
				err = fmt.Errorf("unsupported rule kind %s for %s", r.Kind, r.Name)
			}
			if err != nil {
				return err
			}
		}
		return putMeta(tx.Bucket(bucketMeta), version, updatedUnix)
	})
}

// Purge removes every rule and the metadata.
func (s *boltStore) Purge() error {
	return s.db.Update(resetBuckets)
}

func resetBuckets(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
	}
	return createBuckets(tx)
}

func (s *boltStore) Stats() blocklist.StoreStats {
	var st blocklist.StoreStats
	_ = s.db.View(func(tx *bbolt.Tx) error {
		st.ExactKeys = uint64(tx.Bucket(bucketExact).Stats().KeyN)
		st.SuffixKeys = uint64(tx.Bucket(bucketSuffix).Stats().KeyN)
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyVersion); len(v) == 8 {
			st.Version = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keyUpdated); len(v) == 8 {
			st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return st
}

func putMeta(b *bbolt.Bucket, version uint64, updatedUnix int64) error {
	if err := b.Put(keyVersion, binary.BigEndian.AppendUint64(nil, version)); err != nil {
		return err
	}
	return b.Put(keyUpdated, binary.BigEndian.AppendUint64(nil, uint64(updatedUnix)))
}

func encodeRule(r domain.BlockRule) []byte {
	v := binary.BigEndian.AppendUint64(make([]byte, 0, 8+len(r.Source)), uint64(r.AddedAt.UnixNano()))
	return append(v, r.Source...)
}

func decodeRule(name string, kind domain.BlockRuleKind, v []byte) (domain.BlockRule, error) {
	if len(v) < 8 {
		return domain.BlockRule{}, fmt.Errorf("corrupt blocklist value for %s: %d bytes", name, len(v))
	}
	return domain.BlockRule{
		Name:    name,
		Kind:    kind,
		Source:  string(v[8:]),
		AddedAt: time.Unix(0, int64(binary.BigEndian.Uint64(v[:8]))),
	}, nil
}

var _ blocklist.Store = (*boltStore)(nil)
