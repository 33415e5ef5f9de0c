package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func TestCheckInService_RespondResolvesAndTouchesActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))
	openSoftCheck(t, f, "ward", time.Minute)

	f.clock.Advance(5 * time.Minute)
	n, err := f.checkIns.RespondToCheckIn(ctx, "ward", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := f.checkIns.ListEvents(ctx, "ward", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.StatusResolved, events[0].Status)
	assert.Equal(t, "ward", events[0].ResolvedBy)
	assert.Equal(t, domain.ResolutionUserResponse, events[0].ResolutionMethod)

	u, err := f.store.GetUser(ctx, "ward")
	require.NoError(t, err)
	require.NotNil(t, u.LastActiveAt)
	assert.True(t, u.LastActiveAt.Equal(f.clock.Now()))
}

func TestCheckInService_RespondWithoutOpenEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))

	n, err := f.checkIns.RespondToCheckIn(ctx, "ward", "")
	require.NoError(t, err)
	assert.Zero(t, n)

	u, err := f.store.GetUser(ctx, "ward")
	require.NoError(t, err)
	assert.True(t, u.LastActiveAt.Equal(noon))
}

func TestCheckInService_DismissByGuardian(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))
	f.addGuardian(t, "ward", domain.User{ID: "g1"})
	ev := openSoftCheck(t, f, "ward", time.Hour)

	_, err := f.checkIns.DismissCheckIn(ctx, "stranger", "ward", "")
	assert.ErrorIs(t, err, domain.ErrNotGuardian)
	assert.Equal(t, 1, f.store.OpenEventCount("ward"))

	n, err := f.checkIns.DismissCheckIn(ctx, "g1", "ward", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events, err := f.store.ListEvents(ctx, "ward", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDismissed, events[0].Status)
	assert.Equal(t, "g1", events[0].ResolvedBy)
	assert.Equal(t, domain.ResolutionGuardianAction, events[0].ResolutionMethod)

	// A guardian dismissing does not count as the ward being alive.
	u, err := f.store.GetUser(ctx, "ward")
	require.NoError(t, err)
	assert.True(t, u.LastActiveAt.Equal(noon.Add(-20*time.Hour)))
}

func TestCheckInService_ListEventsLimits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))

	for i := 0; i < 25; i++ {
		ev := domain.NewSoftCheck(fmt.Sprintf("e%02d", i), "ward", noon.Add(time.Duration(i)*time.Minute))
		require.NoError(t, ev.Close(domain.StatusResolved, "ward", domain.ResolutionUserResponse, ev.CreatedAt))
		require.NoError(t, f.store.CreateEvent(ctx, ev))
	}

	events, err := f.checkIns.ListEvents(ctx, "ward", 0)
	require.NoError(t, err)
	require.Len(t, events, defaultEventHistory)
	assert.Equal(t, "e24", events[0].ID)

	events, err = f.checkIns.ListEvents(ctx, "ward", 500)
	require.NoError(t, err)
	assert.Len(t, events, 25)
}
