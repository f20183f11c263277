package oauth

import (
	"context"
	"sync"
	"time"

	"adbridge/pkg/logging"
)

// TokenStore holds one TokenRecord per chat identity.
//
// Implementations must be safe for concurrent use and must give
// read-your-writes consistency: once Set returns, any later Get for the
// same identity, from any goroutine, observes that record or a newer one.
// Concurrent Sets for the same identity resolve last-writer-wins.
type TokenStore interface {
	// Get returns the record for id, or nil if none is stored.
	Get(ctx context.Context, id ChatID) (*TokenRecord, error)

	// Set stores rec for id, replacing any previous record.
	Set(ctx context.Context, id ChatID, rec TokenRecord) error

	// Invalidate removes the record for id. Removing an absent record is
	// not an error.
	Invalidate(ctx context.Context, id ChatID) error
}

// defaultSweepInterval is how often MemoryTokenStore drops expired records.
const defaultSweepInterval = 5 * time.Minute

// MemoryTokenStore is an in-process TokenStore guarded by a RWMutex.
// Records are lost on restart.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records map[ChatID]TokenRecord

	sweepInterval time.Duration
	stopSweep     chan struct{}
	stopOnce      sync.Once
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates a store and starts its background sweeper.
// A non-positive interval uses the default of five minutes.
func NewMemoryTokenStore(sweepInterval time.Duration) *MemoryTokenStore {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	s := &MemoryTokenStore{
		records:       make(map[ChatID]TokenRecord),
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get implements TokenStore. The returned record is a copy.
func (s *MemoryTokenStore) Get(_ context.Context, id ChatID) (*TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Set implements TokenStore.
func (s *MemoryTokenStore) Set(_ context.Context, id ChatID, rec TokenRecord) error {
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()

	logging.Debug("TokenStore", "Stored token for chat=%s (expires: %v, long-lived: %t)",
		id, rec.ExpiresAt, rec.LongLived)
	return nil
}

// Invalidate implements TokenStore.
func (s *MemoryTokenStore) Invalidate(_ context.Context, id ChatID) error {
	s.mu.Lock()
	_, existed := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()

	if existed {
		logging.Debug("TokenStore", "Invalidated token for chat=%s", id)
	}
	return nil
}

// Count returns the number of stored records.
func (s *MemoryTokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stop stops the sweeper. It is safe to call more than once.
func (s *MemoryTokenStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopSweep) })
}

func (s *MemoryTokenStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// sweep removes records whose expiry has passed.
func (s *MemoryTokenStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, rec := range s.records {
		if rec.IsExpired(0) {
			delete(s.records, id)
			count++
		}
	}

	if count > 0 {
		logging.Debug("TokenStore", "Swept %d expired tokens", count)
	}
}
