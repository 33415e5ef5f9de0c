package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

const (
	DefaultInvitationTTL = 24 * time.Hour

	codeLength   = 6
	// No 0/O or 1/I: codes are read aloud and typed by hand.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeTries = 5
)

var errCodeSpaceExhausted = errors.New("invitation: could not allocate a unique code")

// InvitationCodeService issues single-use codes that link a guardian to a ward.
type InvitationCodeService struct {
	store     ports.InvitationStore
	guardians ports.GuardianRepository
	clock     clock.Clock
	ttl       time.Duration
	logger    zerolog.Logger

	// acceptMu makes check-then-consume of a code atomic within the process.
	acceptMu sync.Mutex
	newCode  func() (string, error)
}

var _ ports.InvitationService = (*InvitationCodeService)(nil)

func NewInvitationCodeService(
	store ports.InvitationStore,
	guardians ports.GuardianRepository,
	clk clock.Clock,
	ttl time.Duration,
	logger zerolog.Logger,
) *InvitationCodeService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationCodeService{
		store:     store,
		guardians: guardians,
		clock:     clk,
		ttl:       ttl,
		logger:    logger,
		newCode:   generateCode,
	}
}

func (s *InvitationCodeService) CreateInvitation(ctx context.Context, wardID string) (*domain.Invitation, error) {
	return s.CreateCode(ctx, wardID, s.ttl)
}

// CreateCode stores a fresh code for wardID valid for ttl, sweeping expired
// codes first.
func (s *InvitationCodeService) CreateCode(ctx context.Context, wardID string, ttl time.Duration) (*domain.Invitation, error) {
	now := s.clock.Now()
	if swept, err := s.store.DeleteExpired(ctx, now); err != nil {
		s.logger.Warn().Err(err).Msg("invitation: expired code sweep failed")
	} else if swept > 0 {
		s.logger.Debug().Int("swept", swept).Msg("invitation: swept expired codes")
	}

	for range maxCodeTries {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		inv := domain.Invitation{Code: code, WardID: wardID, ExpiresAt: now.Add(ttl)}

		stored, err := s.store.Put(ctx, inv)
		if err != nil {
			metrics.InvitationsTotal.WithLabelValues("create", "error").Inc()
			return nil, fmt.Errorf("store code: %w", err)
		}
		if !stored {
			continue
		}
		metrics.InvitationsTotal.WithLabelValues("create", "success").Inc()
		s.logger.Info().Str("ward_id", wardID).Time("expires_at", inv.ExpiresAt).Msg("invitation: created code")
		return &inv, nil
	}
	return nil, errCodeSpaceExhausted
}

func (s *InvitationCodeService) AcceptInvitation(ctx context.Context, guardianID, code string) (*domain.GuardianLink, error) {
	link, err := s.AcceptCode(ctx, guardianID, code)
	outcome := "success"
	if err != nil {
		outcome = invitationOutcome(err)
	}
	metrics.InvitationsTotal.WithLabelValues("accept", outcome).Inc()
	return link, err
}

// AcceptCode links guardianID to the ward that issued code and consumes it.
func (s *InvitationCodeService) AcceptCode(ctx context.Context, guardianID, code string) (*domain.GuardianLink, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	s.acceptMu.Lock()
	defer s.acceptMu.Unlock()

	inv, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if inv.Expired(now) {
		if err := s.store.Delete(ctx, code); err != nil {
			s.logger.Warn().Err(err).Msg("invitation: failed to delete expired code")
		}
		return nil, domain.ErrExpiredCode
	}
	if inv.WardID == guardianID {
		return nil, domain.ErrSelfInvite
	}

	exists, err := s.guardians.LinkExists(ctx, inv.WardID, guardianID)
	if err != nil {
		return nil, fmt.Errorf("check link: %w", err)
	}
	if exists {
		return nil, domain.ErrDuplicateLink
	}

	link := domain.GuardianLink{
		ID:         uuid.NewString(),
		WardID:     inv.WardID,
		GuardianID: guardianID,
		CreatedAt:  now,
	}
	if err := s.guardians.CreateLink(ctx, link); err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, code); err != nil {
		// The link exists; a lingering code fails with ErrDuplicateLink for
		// this guardian and expires on its own.
		s.logger.Error().Err(err).Msg("invitation: failed to consume accepted code")
	}

	s.logger.Info().Str("ward_id", link.WardID).Str("guardian_id", guardianID).Msg("invitation: guardian linked")
	return &link, nil
}

func invitationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid"
	case errors.Is(err, domain.ErrExpiredCode):
		return "expired"
	case errors.Is(err, domain.ErrSelfInvite):
		return "self"
	case errors.Is(err, domain.ErrDuplicateLink):
		return "duplicate"
	}
	return "error"
}

func generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}
