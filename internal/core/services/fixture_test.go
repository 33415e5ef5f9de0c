package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/memory"
	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/mocks"
)

// noon keeps fixtures clear of the default 23:00-07:00 quiet window.
var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memory.Store
	push       *mocks.MockPushGateway
	email      *mocks.MockEmailGateway
	clock      *clock.Fake
	dispatcher *NotificationDispatcher
	detector   *InactivityDetector
	engine     *EscalationEngine
	checkIns   *CheckInService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		push:  mocks.NewMockPushGateway(),
		email: mocks.NewMockEmailGateway(),
		clock: clock.NewFake(noon),
	}
	log := zerolog.Nop()
	f.dispatcher = NewNotificationDispatcher(f.push, f.email, f.store, DispatcherConfig{Timeout: time.Second}, log)
	f.detector = NewInactivityDetector(f.store, f.store, f.dispatcher, f.clock, time.UTC, log)
	f.engine = NewEscalationEngine(f.store, f.store, f.dispatcher, f.clock, log)
	f.checkIns = NewCheckInService(f.store, f.store, f.clock, log)
	return f
}

// addWard seeds a monitored user last seen lastSeenAgo before now; zero
// means never seen.
func (f *fixture) addWard(t *testing.T, id string, lastSeenAgo time.Duration, policy domain.MonitoringPolicy) domain.User {
	t.Helper()
	u := domain.User{
		ID:            id,
		Email:         id + "@example.com",
		IsActive:      true,
		DeliveryToken: "tok-" + id,
	}
	if lastSeenAgo > 0 {
		at := f.clock.Now().Add(-lastSeenAgo)
		u.LastActiveAt = &at
	}
	f.store.PutUser(u)
	policy.UserID = id
	require.NoError(t, f.store.SavePolicy(context.Background(), policy))
	return u
}

func (f *fixture) addGuardian(t *testing.T, wardID string, g domain.User) {
	t.Helper()
	g.IsActive = true
	f.store.PutUser(g)
	require.NoError(t, f.store.CreateLink(context.Background(), domain.GuardianLink{
		ID:         wardID + "-" + g.ID,
		WardID:     wardID,
		GuardianID: g.ID,
		CreatedAt:  f.clock.Now(),
	}))
}

// noQuietHours is a policy whose quiet window never covers midday.
func noQuietHours() domain.MonitoringPolicy {
	p := domain.DefaultPolicy("")
	p.QuietStart = domain.NewTimeOfDay(0, 0)
	p.QuietEnd = domain.NewTimeOfDay(0, 0)
	return p
}
