package ports

import (
	"context"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

type SoftCheckInSender interface {
	SendSoftCheckIn(ctx context.Context, user domain.User, eventID string) bool
}

type GuardianAlertSender interface {
	SendGuardianAlert(ctx context.Context, ward domain.User, guardians []domain.User, eventID string) int
}

type ActivityService interface {
	RecordActivity(ctx context.Context, userID, signalType, deviceInfo string) (*domain.ActivitySignal, error)
	RecentSignals(ctx context.Context, userID string, limit int) ([]domain.ActivitySignal, error)
}

type PulseService interface {
	RespondToCheckIn(ctx context.Context, userID, eventID string) (int, error)
	DismissCheckIn(ctx context.Context, guardianID, wardID, eventID string) (int, error)
	ListEvents(ctx context.Context, userID string, limit int) ([]domain.PulseEvent, error)
}

type InvitationService interface {
	CreateInvitation(ctx context.Context, wardID string) (*domain.Invitation, error)
	AcceptInvitation(ctx context.Context, guardianID, code string) (*domain.GuardianLink, error)
}

type GuardianService interface {
	ListGuardians(ctx context.Context, wardID string) ([]domain.User, error)
	ListWards(ctx context.Context, guardianID string) ([]domain.User, error)
	RemoveGuardian(ctx context.Context, wardID, guardianID string) (bool, error)
}

type SettingsService interface {
	GetPolicy(ctx context.Context, userID string) (*domain.MonitoringPolicy, error)
	UpdatePolicy(ctx context.Context, userID string, patch domain.PolicyPatch) (*domain.MonitoringPolicy, error)
	RegisterDevice(ctx context.Context, userID, token string) error
	UnregisterDevice(ctx context.Context, userID string) error
}
