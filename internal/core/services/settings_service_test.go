package services

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func TestPolicySettingsService_GetCreatesDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(domain.User{ID: "u1", IsActive: true})
	svc := NewPolicySettingsService(f.store, f.store)

	p, err := svc.GetPolicy(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPolicy("u1"), *p)

	stored, err := f.store.GetPolicy(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, *p, *stored)
}

func TestPolicySettingsService_UnknownUserGetsNoPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewPolicySettingsService(f.store, f.store)

	_, err := svc.GetPolicy(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.store.GetPolicy(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPolicySettingsService_UpdatePolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(domain.User{ID: "u1", IsActive: true})
	svc := NewPolicySettingsService(f.store, f.store)

	hours := 48
	updated, err := svc.UpdatePolicy(ctx, "u1", domain.PolicyPatch{ThresholdHours: &hours})
	require.NoError(t, err)
	assert.Equal(t, 48, updated.ThresholdHours)
	assert.Equal(t, domain.DefaultEscalationDelayMinutes, updated.EscalationDelayMinutes)

	bad := 0
	_, err = svc.UpdatePolicy(ctx, "u1", domain.PolicyPatch{ThresholdHours: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)

	current, err := svc.GetPolicy(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 48, current.ThresholdHours)
}

func TestPolicySettingsService_Devices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutUser(domain.User{ID: "u1", IsActive: true})
	svc := NewPolicySettingsService(f.store, f.store)

	assert.ErrorIs(t, svc.RegisterDevice(ctx, "u1", "   "), domain.ErrEmptyDeviceToken)

	require.NoError(t, svc.RegisterDevice(ctx, "u1", " fcm-token "))
	u, _ := f.store.GetUser(ctx, "u1")
	assert.Equal(t, "fcm-token", u.DeliveryToken)

	require.NoError(t, svc.UnregisterDevice(ctx, "u1"))
	u, _ = f.store.GetUser(ctx, "u1")
	assert.False(t, u.HasDeliveryToken())
}

func TestSignalService_RecordActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))
	svc := NewSignalService(f.store, f.clock)

	sig, err := svc.RecordActivity(ctx, "ward", "", string(make([]byte, 300)))
	require.NoError(t, err)
	assert.Equal(t, domain.SignalHeartbeat, sig.SignalType)
	assert.Len(t, sig.DeviceInfo, maxDeviceInfoLength)

	u, err := f.store.GetUser(ctx, "ward")
	require.NoError(t, err)
	assert.True(t, u.LastActiveAt.Equal(noon))

	_, err = svc.RecordActivity(ctx, "ward", "wave", "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignalType)

	_, err = svc.RecordActivity(ctx, "ward", "app_open", "pixel")
	require.NoError(t, err)
	recent, err := svc.RecentSignals(ctx, "ward", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.SignalAppOpen, recent[0].SignalType)
}

func TestSignalService_DeviceInfoKeepsValidUTF8(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", 20*time.Hour, domain.DefaultPolicy(""))
	svc := NewSignalService(f.store, f.clock)

	// "é" is two bytes and straddles the length limit.
	info := strings.Repeat("a", maxDeviceInfoLength-1) + "é"
	sig, err := svc.RecordActivity(ctx, "ward", "heartbeat", info)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(sig.DeviceInfo))
	assert.Equal(t, strings.Repeat("a", maxDeviceInfoLength-1), sig.DeviceInfo)

	u, err := f.store.GetUser(ctx, "ward")
	require.NoError(t, err)
	assert.True(t, u.LastActiveAt.Equal(noon))
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 5, "abcde"},
		{"rune on boundary", "abcdé", 5, "abcd"},
		{"three byte rune", "ab€", 4, "ab"},
		{"whole rune fits", "ab€x", 5, "ab€"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateUTF8(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestGuardianDirectoryService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addWard(t, "ward", time.Hour, domain.DefaultPolicy(""))
	f.addGuardian(t, "ward", domain.User{ID: "g1"})
	svc := NewGuardianDirectoryService(f.store, f.store, zerolog.Nop())

	guardians, err := svc.ListGuardians(ctx, "ward")
	require.NoError(t, err)
	require.Len(t, guardians, 1)

	wards, err := svc.ListWards(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, wards, 1)
	assert.Equal(t, "ward", wards[0].ID)

	removed, err := svc.RemoveGuardian(ctx, "ward", "g1")
	require.NoError(t, err)
	assert.True(t, removed)

	guardians, err = svc.ListGuardians(ctx, "ward")
	require.NoError(t, err)
	assert.Empty(t, guardians)
}
