package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

const (
	defaultEventHistory = 20
	maxEventHistory     = 100
)

// CheckInService closes check-in events on behalf of wards and guardians.
type CheckInService struct {
	events    ports.EventStore
	guardians ports.GuardianRepository
	clock     clock.Clock
	logger    zerolog.Logger
}

var _ ports.PulseService = (*CheckInService)(nil)

func NewCheckInService(events ports.EventStore, guardians ports.GuardianRepository, clk clock.Clock, logger zerolog.Logger) *CheckInService {
	return &CheckInService{
		events:    events,
		guardians: guardians,
		clock:     clk,
		logger:    logger,
	}
}

// RespondToCheckIn resolves the user's OPEN events (or only eventID when
// set) and refreshes their activity in one atomic step.
func (s *CheckInService) RespondToCheckIn(ctx context.Context, userID, eventID string) (int, error) {
	n, err := s.events.ResolveEvents(ctx, domain.Resolution{
		UserID:        userID,
		EventID:       eventID,
		Status:        domain.StatusResolved,
		ResolvedBy:    userID,
		Method:        domain.ResolutionUserResponse,
		At:            s.clock.Now(),
		TouchActivity: true,
	})
	if err != nil {
		return 0, fmt.Errorf("resolve events: %w", err)
	}
	metrics.EventsClosed.WithLabelValues(string(domain.StatusResolved)).Add(float64(n))
	s.logger.Info().Str("user_id", userID).Int("resolved", n).Msg("pulse: user responded to check-in")
	return n, nil
}

// DismissCheckIn lets a linked guardian close a ward's OPEN event after
// checking on them.
func (s *CheckInService) DismissCheckIn(ctx context.Context, guardianID, wardID, eventID string) (int, error) {
	linked, err := s.guardians.LinkExists(ctx, wardID, guardianID)
	if err != nil {
		return 0, fmt.Errorf("check link: %w", err)
	}
	if !linked {
		return 0, domain.ErrNotGuardian
	}

	n, err := s.events.ResolveEvents(ctx, domain.Resolution{
		UserID:     wardID,
		EventID:    eventID,
		Status:     domain.StatusDismissed,
		ResolvedBy: guardianID,
		Method:     domain.ResolutionGuardianAction,
		At:         s.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("dismiss events: %w", err)
	}
	metrics.EventsClosed.WithLabelValues(string(domain.StatusDismissed)).Add(float64(n))
	s.logger.Info().Str("ward_id", wardID).Str("guardian_id", guardianID).Int("dismissed", n).Msg("pulse: guardian dismissed check-in")
	return n, nil
}

func (s *CheckInService) ListEvents(ctx context.Context, userID string, limit int) ([]domain.PulseEvent, error) {
	if limit <= 0 {
		limit = defaultEventHistory
	}
	if limit > maxEventHistory {
		limit = maxEventHistory
	}
	return s.events.ListEvents(ctx, userID, limit)
}
