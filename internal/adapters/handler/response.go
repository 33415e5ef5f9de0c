package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

const maxBodyBytes = 1 << 16

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotGuardian):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateLink),
		errors.Is(err, domain.ErrOpenEventExists),
		errors.Is(err, domain.ErrEventNotOpen):
		return http.StatusConflict
	case domain.IsValidationFailure(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError reports err to the client. Internal failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, err error, log zerolog.Logger) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg}, log)
}

func badRequest(w http.ResponseWriter, msg string, log zerolog.Logger) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg}, log)
}

// decodeJSON reads the request body into dst. An empty body is accepted
// when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	return err
}

// limitParam parses ?limit=, returning 0 when absent so services apply
// their defaults.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
