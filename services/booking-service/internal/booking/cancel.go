package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// CancelWithToken cancels a booking on behalf of the client holding its one-time token.
func (s *Service) CancelWithToken(ctx context.Context, bookingID, token string) (model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CancelWithToken")
	defer span.End()

	bookingID, token = strings.TrimSpace(bookingID), strings.TrimSpace(token)
	if bookingID == "" {
		return model.Booking{}, invalid("booking_id", "required")
	}
	if token == "" {
		return model.Booking{}, invalid("token", "required")
	}
	span.SetAttributes(attribute.String("booking.id", bookingID))

	b, err := s.store.RedeemCancellationToken(ctx, bookingID, HashToken(token), s.now().UTC())
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrTokenUsed), errors.Is(err, storage.ErrTokenExpired):
		s.logger.Info("cancellation token rejected", "booking_id", bookingID, "reason", err)
		return model.Booking{}, ErrInvalidToken
	case err != nil:
		recordErr(span, err)
		return model.Booking{}, transient("cancel booking", err)
	}

	s.invalidate(ctx, b.ProviderID)
	s.afterCommit(ctx, auditBookingCancelled, clientActor(b), b)
	return b, nil
}

// CancelAsProvider cancels one of the provider's own bookings. Cancelling twice is a no-op.
func (s *Service) CancelAsProvider(ctx context.Context, providerID, bookingID string) (model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CancelAsProvider")
	defer span.End()

	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return model.Booking{}, invalid("booking_id", "required")
	}
	before, err := s.store.Booking(ctx, providerID, bookingID)
	if err != nil {
		if errorsIsNotFound(err) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, transient("load booking", err)
	}
	if before.Status == model.StatusCancelled {
		return before, nil
	}

	b, err := s.store.CancelBooking(ctx, providerID, bookingID, s.now().UTC())
	if err != nil {
		if errorsIsNotFound(err) {
			return model.Booking{}, ErrBookingNotFound
		}
		recordErr(span, err)
		return model.Booking{}, transient("cancel booking", err)
	}
	s.invalidate(ctx, providerID)
	s.afterCommit(ctx, auditBookingCancelled, "provider:"+providerID, b)
	return b, nil
}
