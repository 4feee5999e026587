package dedupestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemDedupeStore keeps one expirable LRU per namespace, created lazily with
// the TTL of the first Set in that namespace. Suitable for single-process
// deployments; entries are also bounded by capacity so a burst cannot grow
// memory without limit.
type MemDedupeStore struct {
	capacity int

	mu   sync.Mutex
	sets map[string]*expirable.LRU[string, bool]
}

func NewMemDedupeStore(capacity int) *MemDedupeStore {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &MemDedupeStore{
		capacity: capacity,
		sets:     make(map[string]*expirable.LRU[string, bool]),
	}
}

func (s *MemDedupeStore) Check(ctx context.Context, name, key string) (bool, error) {
	s.mu.Lock()
	lru, ok := s.sets[name]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	_, ok = lru.Get(key)
	return ok, nil
}

func (s *MemDedupeStore) Set(ctx context.Context, name, key string, ttl time.Duration) error {
	s.mu.Lock()
	lru, ok := s.sets[name]
	if !ok {
		lru = expirable.NewLRU[string, bool](s.capacity, nil, ttl)
		s.sets[name] = lru
	}
	s.mu.Unlock()
	lru.Add(key, true)
	return nil
}
