package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps engine errors to HTTP. Internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *booking.ValidationError
	var terr *booking.TransientStoreError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, booking.ErrProviderNotFound):
		writeErrorMessage(w, http.StatusNotFound, "provider not found")
	case errors.Is(err, booking.ErrServiceNotFound):
		writeErrorMessage(w, http.StatusNotFound, "service not found")
	case errors.Is(err, booking.ErrBookingNotFound):
		writeErrorMessage(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, booking.ErrBusyBlockNotFound):
		writeErrorMessage(w, http.StatusNotFound, "busy block not found")
	case errors.Is(err, booking.ErrInvalidToken):
		writeErrorMessage(w, http.StatusForbidden, "invalid or expired cancellation link")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeErrorMessage(w, http.StatusConflict, "this time is no longer available, please pick another slot")
	case errors.As(err, &terr):
		logger.Error("store unavailable", "op", terr.Op, "path", r.URL.Path, "err", terr.Err)
		writeErrorMessage(w, http.StatusServiceUnavailable, "temporarily unavailable, please try again")
	default:
		logger.Error("unexpected error", "path", r.URL.Path, "err", err)
		writeErrorMessage(w, http.StatusInternalServerError, "unexpected error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}
