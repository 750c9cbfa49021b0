package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/linkbook/libs/auth"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

// ProviderHandler serves the dashboard endpoints. Every route sits behind
// auth.RequireBearer; the provider is always the one named in the token.
type ProviderHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewProviderHandler(svc *booking.Service, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{svc: svc, logger: logger}
}

func providerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.ProviderID == "" {
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return claims.ProviderID, true
}

type ruleItem struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type settingsItem struct {
	BufferBeforeMinutes int `json:"buffer_before_minutes"`
	BufferAfterMinutes  int `json:"buffer_after_minutes"`
	MinNoticeMinutes    int `json:"min_notice_minutes"`
}

type scheduleResponse struct {
	Rules    []ruleItem   `json:"rules"`
	Settings settingsItem `json:"settings"`
}

type saveScheduleRequest struct {
	Rules []ruleItem `json:"rules"`
}

func toRuleItems(rules []model.AvailabilityRule) []ruleItem {
	out := make([]ruleItem, 0, len(rules))
	for _, r := range rules {
		out = append(out, ruleItem{DayOfWeek: r.DayOfWeek, StartTime: r.StartTimeLocal, EndTime: r.EndTimeLocal})
	}
	return out
}

func toSettingsItem(s model.AvailabilitySettings) settingsItem {
	return settingsItem{
		BufferBeforeMinutes: s.BufferBeforeMinutes,
		BufferAfterMinutes:  s.BufferAfterMinutes,
		MinNoticeMinutes:    s.MinNoticeMinutes,
	}
}

// Schedule reads (GET) or replaces (PUT) the weekly rules.
func (h *ProviderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	pid, ok := providerID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		rules, settings, err := h.svc.Schedule(r.Context(), pid)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, scheduleResponse{Rules: toRuleItems(rules), Settings: toSettingsItem(settings)})
	case http.MethodPut:
		var req saveScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in := make([]booking.RuleInput, 0, len(req.Rules))
		for _, rule := range req.Rules {
			in = append(in, booking.RuleInput{DayOfWeek: rule.DayOfWeek, StartTime: rule.StartTime, EndTime: rule.EndTime})
		}
		rules, err := h.svc.SaveSchedule(r.Context(), pid, in)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, saveScheduleRequest{Rules: toRuleItems(rules)})
	default:
		methodNotAllowed(w)
	}
}

func (h *ProviderHandler) Settings(w http.ResponseWriter, r *http.Request) {
	pid, ok := providerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req settingsItem
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := h.svc.UpdateSettings(r.Context(), model.AvailabilitySettings{
		ProviderID:          pid,
		BufferBeforeMinutes: req.BufferBeforeMinutes,
		BufferAfterMinutes:  req.BufferAfterMinutes,
		MinNoticeMinutes:    req.MinNoticeMinutes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsItem(saved))
}

type busyBlockItem struct {
	ID      string `json:"id,omitempty"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Title   string `json:"title,omitempty"`
}

func toBusyBlockItem(b model.BusyBlock) busyBlockItem {
	return busyBlockItem{
		ID:      b.ID,
		StartAt: b.StartAt.UTC().Format(time.RFC3339),
		EndAt:   b.EndAt.UTC().Format(time.RFC3339),
		Title:   b.Title,
	}
}

// BusyBlocks creates (POST), lists (GET ?from=&to=) or deletes (DELETE ?id=) busy blocks.
func (h *ProviderHandler) BusyBlocks(w http.ResponseWriter, r *http.Request) {
	pid, ok := providerID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req busyBlockItem
		if !decodeJSON(w, r, &req) {
			return
		}
		start, err1 := time.Parse(time.RFC3339, req.StartAt)
		end, err2 := time.Parse(time.RFC3339, req.EndAt)
		if err1 != nil || err2 != nil {
			writeErrorMessage(w, http.StatusBadRequest, "start_at and end_at must be RFC 3339")
			return
		}
		b, err := h.svc.CreateBusyBlock(r.Context(), pid, booking.BusyBlockInput{StartAt: start, EndAt: end, Title: req.Title})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBusyBlockItem(b))
	case http.MethodGet:
		from, to, ok := parseRange(w, r)
		if !ok {
			return
		}
		blocks, err := h.svc.ListBusyBlocks(r.Context(), pid, from, to)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		items := make([]busyBlockItem, 0, len(blocks))
		for _, b := range blocks {
			items = append(items, toBusyBlockItem(b))
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodDelete:
		if err := h.svc.DeleteBusyBlock(r.Context(), pid, r.URL.Query().Get("id")); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// parseRange reads from/to, defaulting to the next 30 days.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from := time.Now().UTC()
	to := from.AddDate(0, 0, 30)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "from must be RFC 3339")
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "to must be RFC 3339")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	return from, to, true
}

func (h *ProviderHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	pid, ok := providerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	bookings, err := h.svc.ListBookings(r.Context(), pid, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

type providerCancelRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *ProviderHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	pid, ok := providerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req providerCancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.CancelAsProvider(r.Context(), pid, req.BookingID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCancelResponse(b))
}
