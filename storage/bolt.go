package storage

import (
	"encoding/hex"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is a persistent Store using BoltDB. Each scope maps to its own
// bucket (hex encoded); values carry the same presence envelope as the
// LevelDB backend.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB file at path.
func NewBoltStore(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func scopeBucket(scope []byte) []byte {
	return []byte(hex.EncodeToString(scope))
}

func (s *BoltStore) Get(scope, key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(scopeBucket(scope))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(key); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return unenvelope(raw)
}

func (s *BoltStore) Put(scope, key, value []byte) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(scopeBucket(scope))
		if err != nil {
			return err
		}
		return bucket.Put(key, envelope(value))
	})
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
