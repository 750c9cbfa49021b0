package handlers

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/booking"
)

// Register mounts the public and provider routes on mux. requireProvider guards every
// /api/v1/provider route.
func Register(mux *http.ServeMux, svc *booking.Service, logger *slog.Logger, requireProvider func(http.Handler) http.Handler) {
	public := NewPublicHandler(svc, logger)
	mux.HandleFunc("/api/v1/public/slots", public.Slots)
	mux.HandleFunc("/api/v1/public/book", public.Book)
	mux.HandleFunc("/api/v1/public/bookings/cancel", public.Cancel)

	provider := NewProviderHandler(svc, logger)
	mux.Handle("/api/v1/provider/schedule", requireProvider(http.HandlerFunc(provider.Schedule)))
	mux.Handle("/api/v1/provider/settings", requireProvider(http.HandlerFunc(provider.Settings)))
	mux.Handle("/api/v1/provider/busy-blocks", requireProvider(http.HandlerFunc(provider.BusyBlocks)))
	mux.Handle("/api/v1/provider/bookings", requireProvider(http.HandlerFunc(provider.Bookings)))
	mux.Handle("/api/v1/provider/bookings/cancel", requireProvider(http.HandlerFunc(provider.CancelBooking)))
}
