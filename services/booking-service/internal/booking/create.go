package booking

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxNameLen  = 200
	maxNotesLen = 2000
	maxKeyLen   = 128
	maxPhoneLen = 40
)

type CreateBookingInput struct {
	ProviderRef string
	ServiceID   string
	StartAt     time.Time
	// EndAt is whatever the client sent. It is never trusted; the end is recomputed
	// from the service duration.
	EndAt          *time.Time
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Notes          string
	IdempotencyKey string
}

type CreateBookingResult struct {
	Booking model.Booking
	// CancellationToken is empty when it could not be stored or on a replay.
	CancellationToken string
	// Replayed is true when the idempotency key matched an earlier booking.
	Replayed bool
}

func (in *CreateBookingInput) normalize() error {
	in.ProviderRef = strings.TrimSpace(in.ProviderRef)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.ClientPhone = strings.TrimSpace(in.ClientPhone)
	in.Notes = strings.TrimSpace(in.Notes)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	switch {
	case in.ProviderRef == "":
		return invalid("provider", "required")
	case in.ServiceID == "":
		return invalid("service_id", "required")
	case in.StartAt.IsZero():
		return invalid("start_at", "required")
	case in.ClientName == "":
		return invalid("client_name", "required")
	case utf8.RuneCountInString(in.ClientName) > maxNameLen:
		return invalid("client_name", "too long")
	case in.ClientEmail == "" && in.ClientPhone == "":
		return invalid("client_email", "an email or a phone number is required")
	case utf8.RuneCountInString(in.ClientPhone) > maxPhoneLen:
		return invalid("client_phone", "too long")
	case utf8.RuneCountInString(in.Notes) > maxNotesLen:
		return invalid("notes", "too long")
	case len(in.IdempotencyKey) > maxKeyLen:
		return invalid("idempotency_key", "too long")
	}
	if in.ClientEmail != "" {
		addr, err := mail.ParseAddress(in.ClientEmail)
		if err != nil {
			return invalid("client_email", "not a valid address")
		}
		in.ClientEmail = addr.Address
	}
	in.StartAt = in.StartAt.UTC()
	return nil
}

// CreateBooking validates a requested slot against the current conflict space and
// inserts it. Check and insert run inside the provider's atomic section, so of two
// concurrent overlapping requests exactly one succeeds.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CreateBooking")
	defer span.End()

	if err := in.normalize(); err != nil {
		return CreateBookingResult{}, err
	}
	p, svc, loc, err := s.lookup(ctx, in.ProviderRef, in.ServiceID)
	if err != nil {
		recordErr(span, err)
		return CreateBookingResult{}, err
	}
	span.SetAttributes(attribute.String("provider.id", p.ID), attribute.String("service.id", svc.ID))

	candidate := availability.Interval{Start: in.StartAt, End: in.StartAt.Add(svc.Duration())}
	if in.EndAt != nil && !in.EndAt.UTC().Equal(candidate.End) {
		s.logger.Debug("ignoring client end_at", "provider_id", p.ID, "client_end_at", in.EndAt.UTC(), "end_at", candidate.End)
	}

	b := model.Booking{
		ProviderID:  p.ID,
		ServiceID:   svc.ID,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		ClientPhone: in.ClientPhone,
		Notes:       in.Notes,
		StartAt:     candidate.Start,
		EndAt:       candidate.End,
		Status:      model.StatusConfirmed,
	}
	replayed := false
	now := s.now().UTC()
	date := availability.DateOf(candidate.Start, loc)

	err = s.store.WithProviderLock(ctx, p.ID, func(tx storage.Tx) error {
		if in.IdempotencyKey != "" {
			prev, ok, err := tx.BookingByIdempotencyKey(ctx, p.ID, in.IdempotencyKey)
			if err != nil {
				return transient("load idempotency key", err)
			}
			if ok {
				if prev.ServiceID != svc.ID || !prev.StartAt.Equal(candidate.Start) {
					return invalid("idempotency_key", "already used for a different booking")
				}
				if prev.Status == model.StatusCancelled {
					return errors.Join(ErrSlotUnavailable, errReplayCancelled)
				}
				b, replayed = prev, true
				return nil
			}
		}

		space, err := s.loadSpace(ctx, tx, p, svc, loc, date, now)
		if err != nil {
			return err
		}
		if !availability.WithinAny(candidate, space.windows) {
			return errors.Join(ErrSlotUnavailable, availability.ErrOutOfWindow)
		}
		if err := availability.CheckCandidate(candidate, space.conflicts, space.buffers, space.earliest); err != nil {
			return errors.Join(ErrSlotUnavailable, err)
		}
		if err := tx.InsertBooking(ctx, &b, in.IdempotencyKey); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		err = s.commitError(err)
		if errors.Is(err, ErrSlotUnavailable) {
			s.logger.Info("slot unavailable", "provider_id", p.ID, "start_at", candidate.Start, "reason", err)
		} else {
			recordErr(span, err)
		}
		return CreateBookingResult{}, err
	}

	if replayed {
		span.SetAttributes(attribute.Bool("booking.replayed", true))
		return CreateBookingResult{Booking: b, Replayed: true}, nil
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))
	s.invalidate(ctx, p.ID)

	token := s.issueCancellationToken(ctx, b)
	s.afterCommit(ctx, auditBookingCreated, clientActor(b), b)
	return CreateBookingResult{Booking: b, CancellationToken: token}, nil
}

var errReplayCancelled = errors.New("booking for this idempotency key was cancelled")

func (s *Service) commitError(err error) error {
	var verr *ValidationError
	var terr *TransientStoreError
	switch {
	case errors.Is(err, ErrSlotUnavailable), errors.As(err, &verr), errors.As(err, &terr):
		return err
	case errors.Is(err, storage.ErrOverlap):
		return errors.Join(ErrSlotUnavailable, err)
	default:
		return transient("create booking", err)
	}
}
