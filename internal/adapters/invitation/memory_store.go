// Package invitation holds the ephemeral invitation code stores.
package invitation

import (
	"context"
	"sync"
	"time"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// MemoryStore keeps codes in process memory. Codes do not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	codes map[string]domain.Invitation
}

var _ ports.InvitationStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{codes: make(map[string]domain.Invitation)}
}

func (s *MemoryStore) Put(ctx context.Context, inv domain.Invitation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[inv.Code]; taken {
		return false, nil
	}
	s.codes[inv.Code] = inv
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.codes[code]
	if !ok {
		return nil, domain.ErrInvalidCode
	}
	return &inv, nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for code, inv := range s.codes {
		if inv.Expired(now) {
			delete(s.codes, code)
			n++
		}
	}
	return n, nil
}

// Len is the number of codes held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}
