package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type SettingsHandler struct {
	settings ports.SettingsService
	log      zerolog.Logger
}

func NewSettingsHandler(settings ports.SettingsService, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, log: log}
}

type RegisterDeviceRequest struct {
	FCMToken string `json:"fcm_token"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *SettingsHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.settings.GetPolicy(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, policy, h.log)
}

func (h *SettingsHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var patch domain.PolicyPatch
	if err := decodeJSON(r, &patch, false); err != nil {
		badRequest(w, "invalid request body", h.log)
		return
	}

	policy, err := h.settings.UpdatePolicy(r.Context(), middleware.UserIDFromContext(r.Context()), patch)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, policy, h.log)
}

func (h *SettingsHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, "invalid request body", h.log)
		return
	}

	if err := h.settings.RegisterDevice(r.Context(), middleware.UserIDFromContext(r.Context()), req.FCMToken); err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Device registered successfully"}, h.log)
}

func (h *SettingsHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.UnregisterDevice(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Device unregistered"}, h.log)
}
