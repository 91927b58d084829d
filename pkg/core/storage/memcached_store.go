package storage

import (
	"bytes"
	"sync"
)

// MemCachedStore is a wrapper around persistent store that caches all changes
// being made for them to be later flushed in one batch. Deleted items are
// tracked as nil values until persisted.
type MemCachedStore struct {
	MemoryStore

	plock sync.Mutex
	// Persistent Store.
	ps Store
}

// NewMemCachedStore creates a new MemCachedStore object.
func NewMemCachedStore(lower Store) *MemCachedStore {
	return &MemCachedStore{
		MemoryStore: *NewMemoryStore(),
		ps:          lower,
	}
}

// Get implements the Store interface.
func (s *MemCachedStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	if val, ok := s.mem[string(key)]; ok {
		s.mut.RUnlock()
		if val == nil {
			return nil, ErrKeyNotFound
		}
		return val, nil
	}
	s.mut.RUnlock()
	return s.ps.Get(key)
}

// Put puts the new value into the store.
func (s *MemCachedStore) Put(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	s.mut.Lock()
	put(s.mem, string(key), value)
	s.mut.Unlock()
}

// Delete drops the KV pair from the store. Never returns an error.
func (s *MemCachedStore) Delete(key []byte) {
	s.mut.Lock()
	put(s.mem, string(key), nil)
	s.mut.Unlock()
}

// PutChangeSet implements the Store interface. Never returns an error.
func (s *MemCachedStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	for k := range puts {
		put(s.mem, k, puts[k])
	}
	s.mut.Unlock()
	return nil
}

// Seek implements the Store interface. Items cached in memory take precedence
// over the persistent ones and deleted items are skipped.
func (s *MemCachedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	memRes := s.collect(rng)
	s.mut.RUnlock()

	var (
		less = func(k1, k2 []byte) bool {
			res := bytes.Compare(k1, k2)
			return res != 0 && rng.Backwards == (res > 0)
		}
		i    int
		done bool
	)
	s.ps.Seek(rng, func(k, v []byte) bool {
		for ; i < len(memRes) && less(memRes[i].Key, k); i++ {
			if memRes[i].Value != nil && !f(memRes[i].Key, memRes[i].Value) {
				done = true
				return false
			}
		}
		if i < len(memRes) && bytes.Equal(memRes[i].Key, k) {
			kv := memRes[i]
			i++
			if kv.Value == nil {
				return true
			}
			if !f(kv.Key, kv.Value) {
				done = true
				return false
			}
			return true
		}
		if !f(k, v) {
			done = true
			return false
		}
		return true
	})
	if done {
		return
	}
	for ; i < len(memRes); i++ {
		if memRes[i].Value != nil && !f(memRes[i].Key, memRes[i].Value) {
			return
		}
	}
}

// Len returns the number of cached changes.
func (s *MemCachedStore) Len() int {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return len(s.mem)
}

// Persist flushes all the MemoryStore contents into the (supposedly) persistent
// store ps. MemCachedStore remains accessible for the most part of this action
// (any new changes will be cached in memory).
func (s *MemCachedStore) Persist() (int, error) {
	s.plock.Lock()
	defer s.plock.Unlock()

	s.mut.Lock()
	keys := len(s.mem)
	if keys == 0 {
		s.mut.Unlock()
		return 0, nil
	}
	changes := s.mem
	s.mem = make(map[string][]byte)
	s.mut.Unlock()

	err := s.ps.PutChangeSet(changes)
	if err != nil {
		// Merge the failed changeset back, newer changes take precedence.
		s.mut.Lock()
		for k, v := range s.mem {
			changes[k] = v
		}
		s.mem = changes
		s.mut.Unlock()
		return 0, err
	}
	return keys, nil
}

// Close implements Store interface, clears up memory and closes the lower layer
// Store.
func (s *MemCachedStore) Close() error {
	// It's always successful.
	_ = s.MemoryStore.Close()
	return s.ps.Close()
}
