// Package memory provides an in-process implementation of the pulse stores.
// All operations run under one mutex, which is what makes check-and-create
// of OPEN events atomic here.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	policies map[string]domain.MonitoringPolicy
	links    []domain.GuardianLink
	events   map[string]*domain.PulseEvent
	signals  []domain.ActivitySignal
}

var (
	_ ports.Directory          = (*Store)(nil)
	_ ports.PolicyRepository   = (*Store)(nil)
	_ ports.GuardianRepository = (*Store)(nil)
	_ ports.EventStore         = (*Store)(nil)
	_ ports.ActivityRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		policies: make(map[string]domain.MonitoringPolicy),
		events:   make(map[string]*domain.PulseEvent),
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.users[user.ID] = &u
}

// EnsureUser creates an active user for id unless one exists. It reports
// whether a user was created.
func (s *Store) EnsureUser(id string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; ok {
		return false
	}
	s.users[id] = &domain.User{
		ID:        id,
		Email:     id + "@localhost",
		IsActive:  true,
		CreatedAt: now,
	}
	return true
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ListMonitoredUsers(ctx context.Context) ([]domain.MonitoredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.MonitoredUser
	for id, policy := range s.policies {
		u, ok := s.users[id]
		if !ok || !u.IsActive || u.IsDeceased || !policy.IsActive {
			continue
		}
		out = append(out, domain.MonitoredUser{User: *u, Policy: policy})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

func (s *Store) ListGuardians(ctx context.Context, wardID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.User
	for _, l := range s.links {
		if l.WardID != wardID {
			continue
		}
		if u, ok := s.users[l.GuardianID]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) ListWards(ctx context.Context, guardianID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.User
	for _, l := range s.links {
		if l.GuardianID != guardianID {
			continue
		}
		if u, ok := s.users[l.WardID]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) SetDeliveryToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.DeliveryToken = token
	return nil
}

func (s *Store) ClearDeliveryToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.DeliveryToken == token {
			u.DeliveryToken = ""
		}
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, userID string) (*domain.MonitoringPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SavePolicy(ctx context.Context, policy domain.MonitoringPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.UserID] = policy
	return nil
}

func (s *Store) CreateLink(ctx context.Context, link domain.GuardianLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link.WardID == link.GuardianID {
		return domain.ErrSelfInvite
	}
	for _, l := range s.links {
		if l.WardID == link.WardID && l.GuardianID == link.GuardianID {
			return domain.ErrDuplicateLink
		}
	}
	s.links = append(s.links, link)
	return nil
}

func (s *Store) LinkExists(ctx context.Context, wardID, guardianID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.WardID == wardID && l.GuardianID == guardianID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteLink(ctx context.Context, wardID, guardianID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.links {
		if l.WardID == wardID && l.GuardianID == guardianID {
			s.links = append(s.links[:i], s.links[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
