package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// PolicySettingsService manages a user's monitoring policy and device.
type PolicySettingsService struct {
	policies  ports.PolicyRepository
	directory ports.Directory
}

var _ ports.SettingsService = (*PolicySettingsService)(nil)

func NewPolicySettingsService(policies ports.PolicyRepository, directory ports.Directory) *PolicySettingsService {
	return &PolicySettingsService{policies: policies, directory: directory}
}

// GetPolicy returns the user's policy, creating the default one on first read.
func (s *PolicySettingsService) GetPolicy(ctx context.Context, userID string) (*domain.MonitoringPolicy, error) {
	policy, err := s.policies.GetPolicy(ctx, userID)
	if err == nil {
		return policy, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if _, err := s.directory.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	def := domain.DefaultPolicy(userID)
	if err := s.policies.SavePolicy(ctx, def); err != nil {
		return nil, fmt.Errorf("create default policy: %w", err)
	}
	return &def, nil
}

func (s *PolicySettingsService) UpdatePolicy(ctx context.Context, userID string, patch domain.PolicyPatch) (*domain.MonitoringPolicy, error) {
	current, err := s.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := patch.Apply(*current)
	if err != nil {
		return nil, err
	}
	if err := s.policies.SavePolicy(ctx, updated); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}
	return &updated, nil
}

func (s *PolicySettingsService) RegisterDevice(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrEmptyDeviceToken
	}
	return s.directory.SetDeliveryToken(ctx, userID, token)
}

func (s *PolicySettingsService) UnregisterDevice(ctx context.Context, userID string) error {
	return s.directory.SetDeliveryToken(ctx, userID, "")
}
