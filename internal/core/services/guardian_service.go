package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type GuardianDirectoryService struct {
	directory ports.Directory
	guardians ports.GuardianRepository
	logger    zerolog.Logger
}

var _ ports.GuardianService = (*GuardianDirectoryService)(nil)

func NewGuardianDirectoryService(directory ports.Directory, guardians ports.GuardianRepository, logger zerolog.Logger) *GuardianDirectoryService {
	return &GuardianDirectoryService{directory: directory, guardians: guardians, logger: logger}
}

func (s *GuardianDirectoryService) ListGuardians(ctx context.Context, wardID string) ([]domain.User, error) {
	return s.directory.ListGuardians(ctx, wardID)
}

func (s *GuardianDirectoryService) ListWards(ctx context.Context, guardianID string) ([]domain.User, error) {
	return s.directory.ListWards(ctx, guardianID)
}

func (s *GuardianDirectoryService) RemoveGuardian(ctx context.Context, wardID, guardianID string) (bool, error) {
	removed, err := s.guardians.DeleteLink(ctx, wardID, guardianID)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info().Str("ward_id", wardID).Str("guardian_id", guardianID).Msg("guardian: link removed")
	}
	return removed, nil
}
