package repeatstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const sweepThreshold = 4096

type repeatRecord struct {
	count    int
	channels map[int64]struct{}
	expiry   time.Time
}

// MemRepeatStore is the single-process backend. Expired records are reset
// lazily on Bump; a full sweep runs opportunistically when the map grows
// large.
type MemRepeatStore struct {
	mu      sync.Mutex
	records map[string]*repeatRecord
	now     func() time.Time
}

func NewMemRepeatStore() *MemRepeatStore {
	return &MemRepeatStore{
		records: make(map[string]*repeatRecord),
		now:     time.Now,
	}
}

func (s *MemRepeatStore) Bump(ctx context.Context, authorID int64, signature string, channelID int64, window time.Duration) (int, int, error) {
	key := fmt.Sprintf("%d/%s", authorID, signature)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.After(rec.expiry) {
		rec = &repeatRecord{
			channels: make(map[int64]struct{}),
			expiry:   now.Add(window),
		}
		s.records[key] = rec
	}
	rec.count++
	rec.channels[channelID] = struct{}{}

	if len(s.records) > sweepThreshold {
		s.sweepLocked(now)
	}
	return rec.count, len(rec.channels), nil
}

func (s *MemRepeatStore) sweepLocked(now time.Time) {
	for k, rec := range s.records {
		if now.After(rec.expiry) {
			delete(s.records, k)
		}
	}
}
