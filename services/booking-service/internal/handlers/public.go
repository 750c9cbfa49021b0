package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

// PublicHandler serves the client-facing booking page endpoints.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotsResponse struct {
	Slots []slotItem `json:"slots"`
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	slots, err := h.svc.ListAvailableSlots(r.Context(), q.Get("provider"), q.Get("service_id"), q.Get("date"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := slotsResponse{Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			Start: s.Start.UTC().Format(time.RFC3339),
			End:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// bookRequest names the provider with provider_id. provider is accepted as an alias
// and may hold a username.
type bookRequest struct {
	ProviderID  string `json:"provider_id,omitempty"`
	Provider    string `json:"provider,omitempty"`
	ServiceID   string `json:"service_id"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at,omitempty"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type bookingItem struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		ID:          b.ID,
		ProviderID:  b.ProviderID,
		ServiceID:   b.ServiceID,
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		ClientPhone: b.ClientPhone,
		Notes:       b.Notes,
		StartAt:     b.StartAt.UTC().Format(time.RFC3339),
		EndAt:       b.EndAt.UTC().Format(time.RFC3339),
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

type bookResponse struct {
	Success           bool        `json:"success"`
	Booking           bookingItem `json:"booking"`
	CancellationToken string      `json:"cancellation_token,omitempty"`
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start_at must be RFC 3339", Field: "start_at"})
		return
	}
	providerRef := req.ProviderID
	if strings.TrimSpace(providerRef) == "" {
		providerRef = req.Provider
	}
	in := booking.CreateBookingInput{
		ProviderRef:    providerRef,
		ServiceID:      req.ServiceID,
		StartAt:        startAt,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if raw := strings.TrimSpace(req.EndAt); raw != "" {
		if endAt, err := time.Parse(time.RFC3339, raw); err == nil {
			in.EndAt = &endAt
		}
	}

	res, err := h.svc.CreateBooking(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, bookResponse{
		Success:           true,
		Booking:           toBookingItem(res.Booking),
		CancellationToken: res.CancellationToken,
	})
}

type cancelRequest struct {
	BookingID string `json:"booking_id"`
	Token     string `json:"token"`
}

type cancelResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

func toCancelResponse(b model.Booking) cancelResponse {
	resp := cancelResponse{BookingID: b.ID, Status: string(b.Status)}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *PublicHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.CancelWithToken(r.Context(), req.BookingID, req.Token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelResponse(b))
}
