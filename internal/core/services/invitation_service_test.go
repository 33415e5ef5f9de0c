package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/invitation"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func newInvitationService(f *fixture) (*InvitationCodeService, *invitation.MemoryStore) {
	store := invitation.NewMemoryStore()
	return NewInvitationCodeService(store, f.store, f.clock, 0, zerolog.Nop()), store
}

func TestInvitationCodeService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := newInvitationService(f)

	inv, err := svc.CreateInvitation(ctx, "ward")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-HJ-NP-Z2-9]{6}$`), inv.Code)
	assert.True(t, inv.ExpiresAt.Equal(noon.Add(24*time.Hour)))

	link, err := svc.AcceptInvitation(ctx, "guardian", inv.Code)
	require.NoError(t, err)
	assert.Equal(t, "ward", link.WardID)
	assert.Equal(t, "guardian", link.GuardianID)

	linked, err := f.store.LinkExists(ctx, "ward", "guardian")
	require.NoError(t, err)
	assert.True(t, linked)

	_, err = svc.AcceptInvitation(ctx, "someone-else", inv.Code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestInvitationCodeService_AcceptFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		svc, store := newInvitationService(f)
		inv, err := svc.CreateInvitation(ctx, "ward")
		require.NoError(t, err)

		f.clock.Advance(24*time.Hour + time.Second)
		_, err = svc.AcceptInvitation(ctx, "guardian", inv.Code)
		assert.ErrorIs(t, err, domain.ErrExpiredCode)
		assert.Zero(t, store.Len())
	})

	t.Run("self_invite", func(t *testing.T) {
		f := newFixture(t)
		svc, _ := newInvitationService(f)
		inv, err := svc.CreateInvitation(ctx, "ward")
		require.NoError(t, err)

		_, err = svc.AcceptInvitation(ctx, "ward", inv.Code)
		assert.ErrorIs(t, err, domain.ErrSelfInvite)

		// A failed self-accept leaves the code usable.
		_, err = svc.AcceptInvitation(ctx, "guardian", inv.Code)
		assert.NoError(t, err)
	})

	t.Run("already_linked", func(t *testing.T) {
		f := newFixture(t)
		svc, _ := newInvitationService(f)
		first, err := svc.CreateInvitation(ctx, "ward")
		require.NoError(t, err)
		_, err = svc.AcceptInvitation(ctx, "guardian", first.Code)
		require.NoError(t, err)

		second, err := svc.CreateInvitation(ctx, "ward")
		require.NoError(t, err)
		_, err = svc.AcceptInvitation(ctx, "guardian", second.Code)
		assert.ErrorIs(t, err, domain.ErrDuplicateLink)
	})

	t.Run("unknown_code", func(t *testing.T) {
		f := newFixture(t)
		svc, _ := newInvitationService(f)
		_, err := svc.AcceptInvitation(ctx, "guardian", "ZZZZZZ")
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
	})
}

func TestInvitationCodeService_NormalisesCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := newInvitationService(f)
	svc.newCode = func() (string, error) { return "ABC123", nil }

	_, err := svc.CreateInvitation(ctx, "ward")
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(ctx, "guardian", "  abc123 ")
	assert.NoError(t, err)
}

func TestInvitationCodeService_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, store := newInvitationService(f)

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := svc.CreateInvitation(ctx, "ward-1")
	require.NoError(t, err)
	second, err := svc.CreateInvitation(ctx, "ward-2")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)
	assert.Equal(t, "BBBBBB", second.Code)
	assert.Equal(t, 2, store.Len())
}

func TestInvitationCodeService_GivesUpWhenCodesKeepColliding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := newInvitationService(f)
	svc.newCode = func() (string, error) { return "SAME00", nil }

	_, err := svc.CreateInvitation(ctx, "ward-1")
	require.NoError(t, err)
	_, err = svc.CreateInvitation(ctx, "ward-2")
	assert.ErrorIs(t, err, errCodeSpaceExhausted)
}

func TestInvitationCodeService_SweepsExpiredCodesOnCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, store := newInvitationService(f)

	_, err := svc.CreateCode(ctx, "ward-1", time.Minute)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, err = svc.CreateInvitation(ctx, "ward-2")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
}

func TestInvitationCodeService_ConcurrentAcceptLinksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc, _ := newInvitationService(f)
	inv, err := svc.CreateInvitation(ctx, "ward")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, g := range []string{"g1", "g2", "g3", "g4"} {
		wg.Add(1)
		go func(guardianID string) {
			defer wg.Done()
			_, err := svc.AcceptInvitation(ctx, guardianID, inv.Code)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidCode)
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestInvitationCodeService_GeneratorFailure(t *testing.T) {
	f := newFixture(t)
	svc, _ := newInvitationService(f)
	svc.newCode = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := svc.CreateInvitation(context.Background(), "ward")
	assert.Error(t, err)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 90)
}

func TestCodeAlphabetHasNoLookalikes(t *testing.T) {
	assert.Len(t, codeAlphabet, 32)
	assert.NotContains(t, codeAlphabet, "0")
	assert.NotContains(t, codeAlphabet, "O")
	assert.NotContains(t, codeAlphabet, "1")
	assert.NotContains(t, codeAlphabet, "I")
}
