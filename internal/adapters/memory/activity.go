package memory

import (
	"context"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func (s *Store) RecordSignal(ctx context.Context, signal domain.ActivitySignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[signal.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	at := signal.Timestamp
	u.LastActiveAt = &at
	s.signals = append(s.signals, signal)
	return nil
}

func (s *Store) RecentSignals(ctx context.Context, userID string, limit int) ([]domain.ActivitySignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActivitySignal
	for i := len(s.signals) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.signals[i].UserID == userID {
			out = append(out, s.signals[i])
		}
	}
	return out, nil
}
