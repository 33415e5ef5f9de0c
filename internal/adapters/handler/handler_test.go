package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/invitation"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/memory"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/services"
)

var noon = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	store *memory.Store
	clock *clock.Fake
	mux   *http.ServeMux
}

// asUser stands in for RequireAuth: the caller is taken from X-User-ID.
func asUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(middleware.WithUserID(r.Context(), r.Header.Get("X-User-ID"))))
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()
	clk := clock.NewFake(noon)

	for _, id := range []string{"ward", "guardian", "stranger"} {
		last := noon.Add(-time.Hour)
		store.PutUser(domain.User{ID: id, Email: id + "@example.com", IsActive: true, LastActiveAt: &last, CreatedAt: noon})
	}

	signals := NewSignalHandler(services.NewSignalService(store, clk), log)
	pulse := NewPulseHandler(services.NewCheckInService(store, store, clk, log), log)
	settings := NewSettingsHandler(services.NewPolicySettingsService(store, store), log)
	guardians := NewGuardianHandler(
		services.NewInvitationCodeService(invitation.NewMemoryStore(), store, clk, time.Hour, log),
		services.NewGuardianDirectoryService(store, store, log),
		log,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /signal/heartbeat", asUser(signals.Heartbeat))
	mux.HandleFunc("GET /signal/recent", asUser(signals.Recent))
	mux.HandleFunc("POST /pulse/respond", asUser(pulse.Respond))
	mux.HandleFunc("POST /pulse/dismiss", asUser(pulse.Dismiss))
	mux.HandleFunc("GET /pulse/events", asUser(pulse.Events))
	mux.HandleFunc("GET /settings/policy", asUser(settings.GetPolicy))
	mux.HandleFunc("PATCH /settings/policy", asUser(settings.UpdatePolicy))
	mux.HandleFunc("POST /device/register", asUser(settings.RegisterDevice))
	mux.HandleFunc("DELETE /device/unregister", asUser(settings.UnregisterDevice))
	mux.HandleFunc("POST /guardian/invite", asUser(guardians.Invite))
	mux.HandleFunc("POST /guardian/accept", asUser(guardians.Accept))
	mux.HandleFunc("GET /guardian/list", asUser(guardians.List))
	mux.HandleFunc("GET /guardian/wards", asUser(guardians.Wards))
	mux.HandleFunc("DELETE /guardian/{guardianID}", asUser(guardians.Remove))

	return &testAPI{store: store, clock: clk, mux: mux}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-ID", user)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHeartbeat(t *testing.T) {
	api := newTestAPI(t)

	t.Run("empty body defaults to heartbeat", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/signal/heartbeat", "ward", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[HeartbeatResponse](t, rec)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.SignalID)
		assert.True(t, resp.LastActiveAt.Equal(noon))
	})

	t.Run("explicit signal type", func(t *testing.T) {
		api.clock.Advance(time.Minute)
		rec := api.do(t, http.MethodPost, "/signal/heartbeat", "ward", HeartbeatRequest{SignalType: "app_open", DeviceInfo: "pixel"})
		require.Equal(t, http.StatusOK, rec.Code)

		recent := api.do(t, http.MethodGet, "/signal/recent?limit=1", "ward", nil)
		require.Equal(t, http.StatusOK, recent.Code)
		list := decode[SignalListResponse](t, recent)
		require.Len(t, list.Signals, 1)
		assert.Equal(t, domain.SignalAppOpen, list.Signals[0].SignalType)
	})

	t.Run("unknown signal type", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/signal/heartbeat", "ward", HeartbeatRequest{SignalType: "telepathy"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/signal/heartbeat", "ward", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/signal/heartbeat", "ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/signal/recent?limit=abc", "ward", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRespondAndEvents(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, api.store.CreateEvent(ctx, domain.NewSoftCheck("evt-1", "ward", noon.Add(-time.Hour))))

	rec := api.do(t, http.MethodPost, "/pulse/respond", "ward", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ResolveResponse](t, rec)
	assert.Equal(t, 1, resp.Resolved)
	assert.Equal(t, domain.StatusResolved, resp.Status)

	// Nothing left to resolve is still a success.
	rec = api.do(t, http.MethodPost, "/pulse/respond", "ward", RespondRequest{EventID: "evt-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[ResolveResponse](t, rec).Resolved)

	rec = api.do(t, http.MethodGet, "/pulse/events", "ward", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[EventListResponse](t, rec)
	require.Len(t, events.Events, 1)
	assert.Equal(t, domain.StatusResolved, events.Events[0].Status)

	rec = api.do(t, http.MethodGet, "/pulse/events", "stranger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestGuardianFlowAndDismiss(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/guardian/invite", "ward", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	inv := decode[InvitationResponse](t, rec)
	assert.Len(t, inv.Code, 6)
	assert.True(t, inv.ExpiresAt.Equal(noon.Add(time.Hour)))

	rec = api.do(t, http.MethodPost, "/guardian/accept", "ward", AcceptInvitationRequest{Code: inv.Code})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "self invite")

	rec = api.do(t, http.MethodPost, "/guardian/accept", "guardian", AcceptInvitationRequest{Code: inv.Code})
	require.Equal(t, http.StatusOK, rec.Code)
	link := decode[domain.GuardianLink](t, rec)
	assert.Equal(t, "ward", link.WardID)
	assert.Equal(t, "guardian", link.GuardianID)

	rec = api.do(t, http.MethodPost, "/guardian/accept", "stranger", AcceptInvitationRequest{Code: inv.Code})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "code is single use")

	rec = api.do(t, http.MethodGet, "/guardian/list", "ward", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	guardians := decode[GuardianListResponse](t, rec)
	require.Len(t, guardians.Guardians, 1)
	assert.Equal(t, "guardian@example.com", guardians.Guardians[0].Email)

	rec = api.do(t, http.MethodGet, "/guardian/wards", "guardian", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[WardListResponse](t, rec).Wards, 1)

	require.NoError(t, api.store.CreateEvent(context.Background(), domain.NewSoftCheck("evt-2", "ward", noon)))

	rec = api.do(t, http.MethodPost, "/pulse/dismiss", "stranger", DismissRequest{WardID: "ward"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/pulse/dismiss", "guardian", DismissRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/pulse/dismiss", "guardian", DismissRequest{WardID: "ward", EventID: "evt-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusDismissed, decode[ResolveResponse](t, rec).Status)
	assert.Equal(t, 0, api.store.OpenEventCount("ward"))

	rec = api.do(t, http.MethodDelete, "/guardian/guardian", "ward", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/guardian/guardian", "ward", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsAndDevices(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/settings/policy", "ward", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	policy := decode[domain.MonitoringPolicy](t, rec)
	assert.Equal(t, 12, policy.ThresholdHours)
	assert.Equal(t, "23:00", policy.QuietStart.String())

	rec = api.do(t, http.MethodPatch, "/settings/policy", "ward", `{"threshold_hours": 24, "quiet_start": "22:30"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	policy = decode[domain.MonitoringPolicy](t, rec)
	assert.Equal(t, 24, policy.ThresholdHours)
	assert.Equal(t, "22:30", policy.QuietStart.String())
	assert.True(t, policy.EscalationEnabled)

	rec = api.do(t, http.MethodPatch, "/settings/policy", "ward", `{"threshold_hours": 500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/device/register", "ward", RegisterDeviceRequest{FCMToken: "tok-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	u, err := api.store.GetUser(context.Background(), "ward")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", u.DeliveryToken)

	rec = api.do(t, http.MethodPost, "/device/register", "ward", RegisterDeviceRequest{FCMToken: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/device/unregister", "ward", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u, err = api.store.GetUser(context.Background(), "ward")
	require.NoError(t, err)
	assert.False(t, u.HasDeliveryToken())
}

type failingPulseService struct{ err error }

func (f failingPulseService) RespondToCheckIn(context.Context, string, string) (int, error) {
	return 0, f.err
}

func (f failingPulseService) DismissCheckIn(context.Context, string, string, string) (int, error) {
	return 0, f.err
}

func (f failingPulseService) ListEvents(context.Context, string, int) ([]domain.PulseEvent, error) {
	return nil, f.err
}

var _ ports.PulseService = failingPulseService{}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := NewPulseHandler(failingPulseService{err: errors.New("pq: connection refused")}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Respond(rec, httptest.NewRequest(http.MethodPost, "/pulse/respond", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrNotGuardian, http.StatusForbidden},
		{domain.ErrDuplicateLink, http.StatusConflict},
		{domain.ErrOpenEventExists, http.StatusConflict},
		{domain.ErrEventNotOpen, http.StatusConflict},
		{domain.ErrInvalidCode, http.StatusBadRequest},
		{domain.ErrExpiredCode, http.StatusBadRequest},
		{domain.ErrSelfInvite, http.StatusBadRequest},
		{domain.ErrInvalidPolicy, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
