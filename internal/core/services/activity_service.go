package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const (
	defaultSignalHistory = 10
	maxDeviceInfoLength  = 255
)

type SignalService struct {
	activity ports.ActivityRepository
	clock    clock.Clock
}

var _ ports.ActivityService = (*SignalService)(nil)

func NewSignalService(activity ports.ActivityRepository, clk clock.Clock) *SignalService {
	return &SignalService{activity: activity, clock: clk}
}

// RecordActivity stores a proof of life and always moves last_active_at.
func (s *SignalService) RecordActivity(ctx context.Context, userID, signalType, deviceInfo string) (*domain.ActivitySignal, error) {
	st, err := domain.ParseSignalType(signalType)
	if err != nil {
		return nil, err
	}
	deviceInfo = truncateUTF8(deviceInfo, maxDeviceInfoLength)

	signal := domain.ActivitySignal{
		ID:         uuid.NewString(),
		UserID:     userID,
		SignalType: st,
		Timestamp:  s.clock.Now(),
		DeviceInfo: deviceInfo,
	}
	if err := s.activity.RecordSignal(ctx, signal); err != nil {
		return nil, fmt.Errorf("record signal: %w", err)
	}
	return &signal, nil
}

func (s *SignalService) RecentSignals(ctx context.Context, userID string, limit int) ([]domain.ActivitySignal, error) {
	if limit <= 0 || limit > defaultSignalHistory*10 {
		limit = defaultSignalHistory
	}
	return s.activity.RecentSignals(ctx, userID, limit)
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
