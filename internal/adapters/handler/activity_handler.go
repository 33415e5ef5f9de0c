package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type SignalHandler struct {
	activity ports.ActivityService
	log      zerolog.Logger
}

func NewSignalHandler(activity ports.ActivityService, log zerolog.Logger) *SignalHandler {
	return &SignalHandler{activity: activity, log: log}
}

type HeartbeatRequest struct {
	SignalType string `json:"signal_type,omitempty"`
	DeviceInfo string `json:"device_info,omitempty"`
}

type HeartbeatResponse struct {
	Success      bool      `json:"success"`
	LastActiveAt time.Time `json:"last_active_at"`
	SignalID     string    `json:"signal_id"`
}

type SignalListResponse struct {
	Signals []domain.ActivitySignal `json:"signals"`
}

// Heartbeat records a proof of life. The body is optional.
func (h *SignalHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := decodeJSON(r, &req, true); err != nil {
		badRequest(w, "invalid request body", h.log)
		return
	}

	signal, err := h.activity.RecordActivity(r.Context(), middleware.UserIDFromContext(r.Context()), req.SignalType, req.DeviceInfo)
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, HeartbeatResponse{
		Success:      true,
		LastActiveAt: signal.Timestamp,
		SignalID:     signal.ID,
	}, h.log)
}

func (h *SignalHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		badRequest(w, err.Error(), h.log)
		return
	}

	signals, err := h.activity.RecentSignals(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	if signals == nil {
		signals = []domain.ActivitySignal{}
	}
	writeJSON(w, http.StatusOK, SignalListResponse{Signals: signals}, h.log)
}
