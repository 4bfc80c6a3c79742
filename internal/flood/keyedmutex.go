package flood

import (
	"sync"
)

// KeyedMutex serializes work per key. Messages from the same sender must be
// processed against the sender store in delivery order; different senders
// never contend.
type KeyedMutex struct {
	mutex   sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*lockEntry),
	}
}

// Lock acquires the lock for key and returns the matching unlock function.
// Entries are reference counted and removed once the last holder releases,
// so idle keys do not accumulate.
func (km *KeyedMutex) Lock(key string) func() {
	km.mutex.Lock()
	entry, exists := km.entries[key]
	if !exists {
		entry = &lockEntry{}
		km.entries[key] = entry
	}
	entry.refs++
	km.mutex.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mutex.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.entries, key)
		}
		km.mutex.Unlock()
	}
}

// Len returns the number of keys currently held or waited on.
func (km *KeyedMutex) Len() int {
	km.mutex.Lock()
	defer km.mutex.Unlock()
	return len(km.entries)
}
