package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is a bounded in-process SenderStore for deployments without
// redis and for tests. Least-recently-seen senders are evicted once the
// capacity is reached.
type MemoryStore struct {
	records *lru.Cache[string, *Record]
	mutex   sync.Mutex
}

// NewMemoryStore creates an in-memory store tracking at most maxSenders
// records.
func NewMemoryStore(maxSenders int) (*MemoryStore, error) {
	cache, err := lru.New[string, *Record](maxSenders)
	if err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	return &MemoryStore{records: cache}, nil
}

func (s *MemoryStore) Observe(_ context.Context, senderID, fingerprint string) (bool, int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if rec, ok := s.records.Get(senderID); ok && rec.Fingerprint == fingerprint {
		return true, rec.Count, nil
	}
	s.records.Add(senderID, &Record{Fingerprint: fingerprint, Count: 1})
	return false, 1, nil
}

func (s *MemoryStore) Increment(_ context.Context, senderID string) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, ok := s.records.Get(senderID)
	if !ok {
		return 0, nil
	}
	rec.Count++
	return rec.Count, nil
}

func (s *MemoryStore) Delete(_ context.Context, senderID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.records.Remove(senderID)
	return nil
}

// Len returns the number of senders currently tracked.
func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.records.Len()
}

func (s *MemoryStore) Close() error {
	return nil
}
