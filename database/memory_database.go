package database

import (
	"errors"
	"sync"

	"github.com/provotum/node/common"
)

// ErrKeyNotFound is returned when the requested key is absent.
var ErrKeyNotFound = errors.New("not found")

// MemDatabase is a map backed store used for tests and ephemeral nodes.
type MemDatabase struct {
	mu sync.RWMutex
	db map[string][]byte
}

// NewMemDatabase returns an empty in-memory database.
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{db: make(map[string][]byte)}
}

func (db *MemDatabase) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.db[string(key)] = common.CopyBytes(value)
	return nil
}

func (db *MemDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *MemDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if value, ok := db.db[string(key)]; ok {
		return common.CopyBytes(value), nil
	}
	return nil, ErrKeyNotFound
}

func (db *MemDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.db, string(key))
	return nil
}

func (db *MemDatabase) Close() error { return nil }

func (db *MemDatabase) NewBatch() Batch {
	return &memBatch{db: db}
}

// Len returns the number of stored entries.
func (db *MemDatabase) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.db)
}

type kv struct {
	k, v []byte
	del  bool
}

type memBatch struct {
	db     *MemDatabase
	writes []kv
	size   int
}

func (b *memBatch) Put(key, value []byte) error {
	b.writes = append(b.writes, kv{common.CopyBytes(key), common.CopyBytes(value), false})
	b.size += len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.writes = append(b.writes, kv{common.CopyBytes(key), nil, true})
	b.size++
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, w := range b.writes {
		if w.del {
			delete(b.db.db, string(w.k))
			continue
		}
		b.db.db[string(w.k)] = w.v
	}
	return nil
}

func (b *memBatch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}
