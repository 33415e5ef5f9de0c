package memory

import (
	"context"
	"sort"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func (s *Store) CreateEvent(ctx context.Context, event domain.PulseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Status == domain.StatusOpen {
		for _, e := range s.events {
			if e.UserID == event.UserID && e.Status == domain.StatusOpen {
				return domain.ErrOpenEventExists
			}
		}
	}
	ev := event
	s.events[event.ID] = &ev
	return nil
}

func (s *Store) FindOpenEvent(ctx context.Context, userID string) (*domain.PulseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.UserID == userID && e.Status == domain.StatusOpen {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) FindEscalationCandidates(ctx context.Context) ([]domain.EscalationCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EscalationCandidate
	for _, e := range s.events {
		if e.Status != domain.StatusOpen || e.Stage != domain.StageSoftCheck {
			continue
		}
		policy, ok := s.policies[e.UserID]
		if !ok || !policy.EscalationEnabled {
			continue
		}
		user, ok := s.users[e.UserID]
		if !ok {
			continue
		}
		out = append(out, domain.EscalationCandidate{Event: *e, Policy: policy, User: *user})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Event.CreatedAt.Before(out[j].Event.CreatedAt) })
	return out, nil
}

func (s *Store) UpdateEvent(ctx context.Context, event domain.PulseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.events[event.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Status != domain.StatusOpen {
		return domain.ErrEventNotOpen
	}
	ev := event
	s.events[event.ID] = &ev
	return nil
}

func (s *Store) ResolveEvents(ctx context.Context, res domain.Resolution) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := 0
	for _, e := range s.events {
		if e.UserID != res.UserID || e.Status != domain.StatusOpen {
			continue
		}
		if res.EventID != "" && e.ID != res.EventID {
			continue
		}
		if err := e.Close(res.Status, res.ResolvedBy, res.Method, res.At); err != nil {
			return resolved, err
		}
		resolved++
	}

	if res.TouchActivity {
		if u, ok := s.users[res.UserID]; ok {
			at := res.At
			u.LastActiveAt = &at
		}
	}
	return resolved, nil
}

func (s *Store) ListEvents(ctx context.Context, userID string, limit int) ([]domain.PulseEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PulseEvent
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OpenEventCount is the number of OPEN events held for userID.
func (s *Store) OpenEventCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events {
		if e.UserID == userID && e.Status == domain.StatusOpen {
			n++
		}
	}
	return n
}
