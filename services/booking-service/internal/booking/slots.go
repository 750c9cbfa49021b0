package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ListAvailableSlots returns the bookable slots of a service on a calendar date in the
// provider's timezone. A day without availability yields an empty list, not an error.
func (s *Service) ListAvailableSlots(ctx context.Context, providerRef, serviceID, date string) ([]availability.Interval, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ListAvailableSlots")
	defer span.End()

	providerRef, serviceID = strings.TrimSpace(providerRef), strings.TrimSpace(serviceID)
	if providerRef == "" {
		return nil, invalid("provider", "required")
	}
	if serviceID == "" {
		return nil, invalid("service_id", "required")
	}
	day, err := availability.ParseDate(date)
	if err != nil {
		return nil, invalid("date", err.Error())
	}

	p, svc, loc, err := s.lookup(ctx, providerRef, serviceID)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("provider.id", p.ID),
		attribute.String("service.id", svc.ID),
		attribute.String("date", day.String()),
	)

	now := s.now().UTC()
	key := ""
	if s.cache != nil {
		key = fmt.Sprintf("%s:%s:%s:%d", p.ID, svc.ID, day, s.cache.Generation(ctx, p.ID))
		if cached, ok := s.cache.Get(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return dropBefore(cached, now, s.minNotice(ctx, p.ID)), nil
		}
	}

	space, err := s.loadSpace(ctx, s.store, p, svc, loc, day, now)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	slots := availability.Collect(availability.Slots(space.query(svc.Duration(), s.cfg.SlotStep)), 0)
	span.SetAttributes(attribute.Int("slots.count", len(slots)))

	if s.cache != nil {
		s.cache.Set(ctx, key, slots)
	}
	return slots, nil
}

// dropBefore re-applies minimum notice to a cached list computed at an earlier instant.
func dropBefore(slots []availability.Interval, now time.Time, notice time.Duration) []availability.Interval {
	earliest := now.Add(notice)
	out := make([]availability.Interval, 0, len(slots))
	for _, sl := range slots {
		if !sl.Start.Before(earliest) {
			out = append(out, sl)
		}
	}
	return out
}

func (s *Service) minNotice(ctx context.Context, providerID string) time.Duration {
	settings, ok, err := s.store.Settings(ctx, providerID)
	if err != nil || !ok {
		return model.DefaultSettings(providerID).MinNotice()
	}
	return settings.MinNotice()
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
