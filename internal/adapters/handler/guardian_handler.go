package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type GuardianHandler struct {
	invitations ports.InvitationService
	guardians   ports.GuardianService
	log         zerolog.Logger
}

func NewGuardianHandler(invitations ports.InvitationService, guardians ports.GuardianService, log zerolog.Logger) *GuardianHandler {
	return &GuardianHandler{invitations: invitations, guardians: guardians, log: log}
}

type InvitationResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AcceptInvitationRequest struct {
	Code string `json:"code"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

type GuardianListResponse struct {
	Guardians []UserSummary `json:"guardians"`
}

type WardListResponse struct {
	Wards []UserSummary `json:"wards"`
}

func summarise(users []domain.User) []UserSummary {
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{ID: u.ID, Email: u.Email, IsActive: u.IsActive})
	}
	return out
}

// Invite issues a code for the caller, who becomes the ward.
func (h *GuardianHandler) Invite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.CreateInvitation(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusCreated, InvitationResponse{Code: inv.Code, ExpiresAt: inv.ExpiresAt}, h.log)
}

// Accept redeems a code, making the caller a guardian of the issuing ward.
func (h *GuardianHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, "invalid request body", h.log)
		return
	}

	link, err := h.invitations.AcceptInvitation(r.Context(), middleware.UserIDFromContext(r.Context()), req.Code)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, link, h.log)
}

func (h *GuardianHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.guardians.ListGuardians(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, GuardianListResponse{Guardians: summarise(users)}, h.log)
}

func (h *GuardianHandler) Wards(w http.ResponseWriter, r *http.Request) {
	users, err := h.guardians.ListWards(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, WardListResponse{Wards: summarise(users)}, h.log)
}

// Remove unlinks {guardianID} from the caller's guardians.
func (h *GuardianHandler) Remove(w http.ResponseWriter, r *http.Request) {
	guardianID := r.PathValue("guardianID")
	if guardianID == "" {
		badRequest(w, "guardian id is required", h.log)
		return
	}

	removed, err := h.guardians.RemoveGuardian(r.Context(), middleware.UserIDFromContext(r.Context()), guardianID)
	if err != nil {
		writeError(w, err, h.log)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "guardian not found"}, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
