package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type PulseHandler struct {
	pulse ports.PulseService
	log   zerolog.Logger
}

func NewPulseHandler(pulse ports.PulseService, log zerolog.Logger) *PulseHandler {
	return &PulseHandler{pulse: pulse, log: log}
}

type RespondRequest struct {
	EventID string `json:"event_id,omitempty"`
}

type DismissRequest struct {
	WardID  string `json:"ward_id"`
	EventID string `json:"event_id,omitempty"`
}

type ResolveResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Status   domain.Status `json:"status"`
	Resolved int           `json:"resolved"`
}

type EventListResponse struct {
	Events []domain.PulseEvent `json:"events"`
}

// Respond is the user's "I'm okay". Responding without an open event is
// not an error.
func (h *PulseHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := decodeJSON(r, &req, true); err != nil {
		badRequest(w, "invalid request body", h.log)
		return
	}

	n, err := h.pulse.RespondToCheckIn(r.Context(), middleware.UserIDFromContext(r.Context()), req.EventID)
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		Success:  true,
		Message:  "Check-in confirmed. Timer reset.",
		Status:   domain.StatusResolved,
		Resolved: n,
	}, h.log)
}

func (h *PulseHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	var req DismissRequest
	if err := decodeJSON(r, &req, false); err != nil || req.WardID == "" {
		badRequest(w, "ward_id is required", h.log)
		return
	}

	n, err := h.pulse.DismissCheckIn(r.Context(), middleware.UserIDFromContext(r.Context()), req.WardID, req.EventID)
	if err != nil {
		writeError(w, err, h.log)
		return
	}

	writeJSON(w, http.StatusOK, ResolveResponse{
		Success:  true,
		Message:  "Check-in dismissed.",
		Status:   domain.StatusDismissed,
		Resolved: n,
	}, h.log)
}

func (h *PulseHandler) Events(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		badRequest(w, err.Error(), h.log)
		return
	}

	events, err := h.pulse.ListEvents(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	if events == nil {
		events = []domain.PulseEvent{}
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events}, h.log)
}
