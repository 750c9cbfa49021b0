package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/linkbook/libs/auth"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

var clock = time.Date(2026, 1, 4, 8, 0, 0, 0, time.UTC)

type env struct {
	mux      *http.ServeMux
	svc      *booking.Service
	provider model.Provider
	service  model.Service
	token    string
}

func newEnv(t *testing.T, store storage.Store, mem *storage.MemoryStore) env {
	t.Helper()
	p := mem.AddProvider(model.Provider{Username: "ada"})
	s := mem.AddService(model.Service{ProviderID: p.ID, Name: "Consult", DurationMinutes: 60})
	require.NoError(t, mem.ReplaceRules(context.Background(), p.ID, []model.AvailabilityRule{
		{ProviderID: p.ID, DayOfWeek: 1, StartTimeLocal: "09:00:00", EndTimeLocal: "17:00:00"},
	}))
	require.NoError(t, mem.UpsertSettings(context.Background(), model.AvailabilitySettings{ProviderID: p.ID}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := booking.NewService(store, logger, booking.Config{}, booking.WithClock(func() time.Time { return clock }))
	t.Cleanup(svc.Wait)

	mux := http.NewServeMux()
	Register(mux, svc, logger, auth.RequireBearer(secret))

	token, err := auth.SignHS256(auth.Claims{
		Sub:        "user-1",
		ProviderID: p.ID,
		Iat:        time.Now().Unix(),
		Exp:        time.Now().Add(time.Hour).Unix(),
	}, secret)
	require.NoError(t, err)
	return env{mux: mux, svc: svc, provider: p, service: s, token: token}
}

func newMemEnv(t *testing.T) env {
	mem := storage.NewMemoryStore()
	return newEnv(t, mem, mem)
}

func (e env) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e env) slotsPath() string {
	return "/api/v1/public/slots?provider=ada&service_id=" + e.service.ID + "&date=2026-01-05"
}

func (e env) bookBody(start string) bookRequest {
	return bookRequest{
		Provider:    "ada",
		ServiceID:   e.service.ID,
		StartAt:     start,
		ClientName:  "Grace Hopper",
		ClientEmail: "grace@example.com",
	}
}

func TestSlots(t *testing.T) {
	e := newMemEnv(t)
	rec := e.do(t, http.MethodGet, e.slotsPath(), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[slotsResponse](t, rec)
	require.Len(t, resp.Slots, 29)
	assert.Equal(t, slotItem{Start: "2026-01-05T09:00:00Z", End: "2026-01-05T10:00:00Z"}, resp.Slots[0])

	rec = e.do(t, http.MethodGet, "/api/v1/public/slots?provider=ada&service_id="+e.service.ID+"&date=2026-01-06", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"slots":[]}`, rec.Body.String())
}

func TestSlots_Errors(t *testing.T) {
	e := newMemEnv(t)
	cases := []struct {
		path string
		code int
	}{
		{"/api/v1/public/slots?provider=ada&service_id=" + e.service.ID + "&date=tomorrow", http.StatusBadRequest},
		{"/api/v1/public/slots?service_id=" + e.service.ID + "&date=2026-01-05", http.StatusBadRequest},
		{"/api/v1/public/slots?provider=bob&service_id=" + e.service.ID + "&date=2026-01-05", http.StatusNotFound},
		{"/api/v1/public/slots?provider=ada&service_id=nope&date=2026-01-05", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := e.do(t, http.MethodGet, tc.path, nil, false)
		assert.Equal(t, tc.code, rec.Code, tc.path)
		assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
	}

	rec := e.do(t, http.MethodPost, e.slotsPath(), nil, false)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBook_AndConflict(t *testing.T) {
	e := newMemEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("2026-01-05T09:00:00Z"), false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[bookResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "2026-01-05T10:00:00Z", resp.Booking.EndAt)
	assert.Equal(t, "confirmed", resp.Booking.Status)
	assert.NotEmpty(t, resp.CancellationToken)

	rec = e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("2026-01-05T09:30:00Z"), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "no longer available")
}

func TestBook_BadInput(t *testing.T) {
	e := newMemEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("monday 9am"), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "start_at", decode[errorResponse](t, rec).Field)

	body := e.bookBody("2026-01-05T09:00:00Z")
	body.ClientEmail = "nope"
	rec = e.do(t, http.MethodPost, "/api/v1/public/book", body, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client_email", decode[errorResponse](t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewReader([]byte(`{"unknown":1}`)))
	out := httptest.NewRecorder()
	e.mux.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestBook_IdempotencyKeyHeader(t *testing.T) {
	e := newMemEnv(t)
	send := func() *httptest.ResponseRecorder {
		raw, _ := json.Marshal(e.bookBody("2026-01-05T11:00:00Z"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewReader(raw))
		req.Header.Set("Idempotency-Key", "abc-123")
		rec := httptest.NewRecorder()
		e.mux.ServeHTTP(rec, req)
		return rec
	}
	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, decode[bookResponse](t, first).Booking.ID, decode[bookResponse](t, second).Booking.ID)
}

func TestCancelWithToken(t *testing.T) {
	e := newMemEnv(t)
	rec := e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("2026-01-05T09:00:00Z"), false)
	require.Equal(t, http.StatusCreated, rec.Code)
	booked := decode[bookResponse](t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings/cancel", cancelRequest{BookingID: booked.Booking.ID, Token: "forged"}, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/public/bookings/cancel", cancelRequest{BookingID: booked.Booking.ID, Token: booked.CancellationToken}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[cancelResponse](t, rec)
	assert.Equal(t, "cancelled", got.Status)
	assert.Equal(t, "2026-01-04T08:00:00Z", got.CancelledAt)
}

type brokenStore struct {
	*storage.MemoryStore
}

func (brokenStore) BusyBlocksInRange(context.Context, string, availability.Interval) ([]model.BusyBlock, error) {
	return nil, errors.New("connection refused")
}

func TestSlots_TransientStoreError(t *testing.T) {
	mem := storage.NewMemoryStore()
	e := newEnv(t, brokenStore{mem}, mem)
	rec := e.do(t, http.MethodGet, e.slotsPath(), nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestProviderRoutes_RequireToken(t *testing.T) {
	e := newMemEnv(t)
	for _, path := range []string{
		"/api/v1/provider/schedule",
		"/api/v1/provider/settings",
		"/api/v1/provider/busy-blocks",
		"/api/v1/provider/bookings",
		"/api/v1/provider/bookings/cancel",
	} {
		rec := e.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestProviderSchedule(t *testing.T) {
	e := newMemEnv(t)

	rec := e.do(t, http.MethodPut, "/api/v1/provider/schedule", saveScheduleRequest{Rules: []ruleItem{
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00"},
	}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/v1/provider/schedule", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[scheduleResponse](t, rec)
	assert.Equal(t, []ruleItem{{DayOfWeek: 1, StartTime: "10:00:00", EndTime: "12:00:00"}}, got.Rules)

	slots := decode[slotsResponse](t, e.do(t, http.MethodGet, e.slotsPath(), nil, false))
	assert.Len(t, slots.Slots, 5)

	rec = e.do(t, http.MethodPut, "/api/v1/provider/schedule", saveScheduleRequest{Rules: []ruleItem{
		{DayOfWeek: 9, StartTime: "10:00", EndTime: "12:00"},
	}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderSettings(t *testing.T) {
	e := newMemEnv(t)
	rec := e.do(t, http.MethodPut, "/api/v1/provider/settings", settingsItem{BufferAfterMinutes: -5}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/v1/provider/settings", settingsItem{BufferBeforeMinutes: 15, MinNoticeMinutes: 60}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settingsItem{BufferBeforeMinutes: 15, MinNoticeMinutes: 60}, decode[settingsItem](t, rec))
}

func TestProviderBusyBlocksAndBookings(t *testing.T) {
	e := newMemEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/provider/busy-blocks", busyBlockItem{
		StartAt: "2026-01-05T12:00:00Z", EndAt: "2026-01-05T13:00:00Z", Title: "Lunch",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	block := decode[busyBlockItem](t, rec)
	assert.NotEmpty(t, block.ID)

	rec = e.do(t, http.MethodGet, "/api/v1/provider/busy-blocks?from=2026-01-05T00:00:00Z&to=2026-01-06T00:00:00Z", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]busyBlockItem](t, rec), 1)

	rec = e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("2026-01-05T12:00:00Z"), false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/v1/provider/busy-blocks?id="+block.ID, nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/v1/provider/busy-blocks?id="+block.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/v1/public/book", e.bookBody("2026-01-05T12:00:00Z"), false)
	require.Equal(t, http.StatusCreated, rec.Code)
	booked := decode[bookResponse](t, rec)

	rec = e.do(t, http.MethodGet, "/api/v1/provider/bookings?limit=10", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]bookingItem](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, booked.Booking.ID, list[0].ID)

	rec = e.do(t, http.MethodPost, "/api/v1/provider/bookings/cancel", providerCancelRequest{BookingID: booked.Booking.ID}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[cancelResponse](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/api/v1/provider/bookings/cancel", providerCancelRequest{BookingID: "missing"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBook_ProviderIDAndOptionalEmail(t *testing.T) {
	e := newMemEnv(t)
	raw := `{"provider_id":"` + e.provider.ID + `","service_id":"` + e.service.ID + `",` +
		`"start_at":"2026-01-05T09:00:00Z","client_name":"Grace","client_phone":"+1 555 0100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", bytes.NewReader([]byte(raw)))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[bookResponse](t, rec)
	assert.Equal(t, e.provider.ID, resp.Booking.ProviderID)
	assert.Empty(t, resp.Booking.ClientEmail)

	body := e.bookBody("2026-01-05T11:00:00Z")
	body.ClientEmail = ""
	rec = e.do(t, http.MethodPost, "/api/v1/public/book", body, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "client_email", decode[errorResponse](t, rec).Field)

	body.ClientPhone = "+1 555 0101"
	rec = e.do(t, http.MethodPost, "/api/v1/public/book", body, false)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
