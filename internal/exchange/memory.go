package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/fluxoclean/controlplane/internal/clock"
)

type entry struct {
	token     string
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryStore keeps codes in process memory. Suitable for a single
// instance. Expiry is checked against the clock on read; a timer frees
// memory for codes never redeemed.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	clock   clock.Clock
}

// NewMemoryStore creates a store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry), clock: clk}
}

func (s *MemoryStore) Put(ctx context.Context, code, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if e, ok := s.entries[code]; ok && now.Before(e.expiresAt) {
		return ErrCodeExists
	}
	e := &entry{token: token, expiresAt: now.Add(ttl)}
	e.timer = time.AfterFunc(ttl, func() { s.evict(code, e) })
	s.entries[code] = e
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[code]
	if !ok {
		return "", ErrCodeNotFound
	}
	delete(s.entries, code)
	e.timer.Stop()
	if !s.clock.Now().Before(e.expiresAt) {
		return "", ErrCodeNotFound
	}
	return e.token, nil
}

// Len returns the number of held codes.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evict(code string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[code] == e {
		delete(s.entries, code)
	}
}
