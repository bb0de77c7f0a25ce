package storage

import (
	"encoding/hex"
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrClosed is returned when a store is used after Close.
var ErrClosed = errors.New("storage: store is closed")

// Store is a byte-addressed map keyed by (scope, key) pairs. The scope
// isolates one owner's slots from another's; within a scope each key holds at
// most one value. A nil value is first class: Get returns nil for a slot that
// was never written as well as for a slot whose value was explicitly cleared,
// and Put with a nil value records that explicit absence. Explicit absence
// and never-written remain distinguishable inside the backend so that write
// sequences can be replayed and audited. A present zero-length value is
// allowed and is distinct from absence.
type Store interface {
	// Get returns the value stored under (scope, key), or nil if the slot
	// is absent.
	Get(scope, key []byte) ([]byte, error)
	// Put stores value under (scope, key). A nil value records explicit
	// absence.
	Put(scope, key, value []byte) error
	// Close releases the backend. The store must not be used afterwards.
	Close() error
}

// storeKey flattens a (scope, key) pair into a single backend key. The scope
// is hex encoded so a '/' can unambiguously separate it from the slot key.
func storeKey(scope, key []byte) []byte {
	buf := make([]byte, 0, hex.EncodedLen(len(scope))+1+len(key))
	buf = append(buf, []byte(hex.EncodeToString(scope))...)
	buf = append(buf, '/')
	buf = append(buf, key...)
	return buf
}

// Value envelope used by backends that cannot hold a nil value distinct from
// an empty one. The first byte tags presence.
const (
	tagAbsent  byte = 0x00
	tagPresent byte = 0x01
)

func envelope(value []byte) []byte {
	if value == nil {
		return []byte{tagAbsent}
	}
	buf := make([]byte, 1+len(value))
	buf[0] = tagPresent
	copy(buf[1:], value)
	return buf
}

func unenvelope(raw []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] == tagAbsent {
		return nil, nil
	}
	if raw[0] != tagPresent {
		return nil, errors.New("storage: malformed value envelope")
	}
	out := make([]byte, len(raw)-1)
	copy(out, raw[1:])
	return out, nil
}

// --- In-memory store (for tests) ---

// MemStore is a map-backed Store safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(scope, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[string(storeKey(scope, key))]
	if !ok || value == nil {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemStore) Put(scope, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		// Keep the entry so explicit absence stays distinguishable from
		// a slot that was never written.
		m.data[string(storeKey(scope, key))] = nil
		return nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[string(storeKey(scope, key))] = stored
	return nil
}

// Written reports whether the slot was ever written, including an explicit
// absence write.
func (m *MemStore) Written(scope, key []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(storeKey(scope, key))]
	return ok
}

// Close satisfies Store for MemStore.
func (m *MemStore) Close() error {
	return nil
}

// --- Persistent store (LevelDB) ---

// LevelDBStore is a persistent Store using LevelDB. Values are wrapped in a
// one-byte presence envelope so explicit absence survives on disk.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(scope, key []byte) ([]byte, error) {
	raw, err := s.db.Get(storeKey(scope, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unenvelope(raw)
}

func (s *LevelDBStore) Put(scope, key, value []byte) error {
	return s.db.Put(storeKey(scope, key), envelope(value), nil)
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
