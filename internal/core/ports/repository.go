package ports

import (
	"context"
	"time"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

// Directory supplies users, their policies and guardian relationships.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// ListMonitoredUsers returns active, non-deceased users whose policy is active.
	ListMonitoredUsers(ctx context.Context) ([]domain.MonitoredUser, error)
	ListGuardians(ctx context.Context, wardID string) ([]domain.User, error)
	ListWards(ctx context.Context, guardianID string) ([]domain.User, error)
	SetDeliveryToken(ctx context.Context, userID, token string) error
	// ClearDeliveryToken removes token from whichever user holds it.
	ClearDeliveryToken(ctx context.Context, token string) error
}

type PolicyRepository interface {
	GetPolicy(ctx context.Context, userID string) (*domain.MonitoringPolicy, error)
	SavePolicy(ctx context.Context, policy domain.MonitoringPolicy) error
}

type GuardianRepository interface {
	// CreateLink fails with domain.ErrDuplicateLink when the pair exists.
	CreateLink(ctx context.Context, link domain.GuardianLink) error
	LinkExists(ctx context.Context, wardID, guardianID string) (bool, error)
	DeleteLink(ctx context.Context, wardID, guardianID string) (bool, error)
}

// EventStore persists PulseEvents. Every implementation must reject a second
// OPEN event for a user, not merely rely on callers checking first.
type EventStore interface {
	// CreateEvent fails with domain.ErrOpenEventExists on a duplicate OPEN event.
	CreateEvent(ctx context.Context, event domain.PulseEvent) error
	// FindOpenEvent returns domain.ErrNotFound when the user has none.
	FindOpenEvent(ctx context.Context, userID string) (*domain.PulseEvent, error)
	FindEscalationCandidates(ctx context.Context) ([]domain.EscalationCandidate, error)
	// UpdateEvent persists stage changes of an OPEN event and fails with
	// domain.ErrEventNotOpen if it was closed concurrently.
	UpdateEvent(ctx context.Context, event domain.PulseEvent) error
	// ResolveEvents closes matching OPEN events and optionally refreshes the
	// user's activity, all in one atomic unit.
	ResolveEvents(ctx context.Context, res domain.Resolution) (int, error)
	ListEvents(ctx context.Context, userID string, limit int) ([]domain.PulseEvent, error)
}

type ActivityRepository interface {
	// RecordSignal stores the signal and sets last_active_at atomically.
	RecordSignal(ctx context.Context, signal domain.ActivitySignal) error
	RecentSignals(ctx context.Context, userID string, limit int) ([]domain.ActivitySignal, error)
}

// InvitationStore is the ephemeral code store behind invitations.
type InvitationStore interface {
	// Put stores inv unless the code is already taken, reporting whether it did.
	Put(ctx context.Context, inv domain.Invitation) (bool, error)
	// Get returns domain.ErrInvalidCode when the code is unknown.
	Get(ctx context.Context, code string) (*domain.Invitation, error)
	Delete(ctx context.Context, code string) error
	// DeleteExpired sweeps codes past expiry and returns how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
