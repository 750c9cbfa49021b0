package booking

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/trace"
)

// Kafka topics. The topic name equals the outbox event type.
const (
	TopicBookingCreated   = "booking.created.v1"
	TopicBookingCancelled = "booking.cancelled.v1"
	TopicScheduleUpdated  = "provider.schedule.updated.v1"
)

const (
	auditBookingCreated   = "booking.created"
	auditBookingCancelled = "booking.cancelled"
	auditScheduleSaved    = "provider.schedule.saved"
	auditSettingsUpdated  = "provider.settings.updated"
	auditBusyBlockCreated = "provider.busy_block.created"
	auditBusyBlockDeleted = "provider.busy_block.deleted"
)

func newCancellationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the only form in which cancellation tokens are stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// detached keeps the trace of ctx but not its cancellation, bounded by the side effect timeout.
func (s *Service) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	base := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
	return context.WithTimeout(base, s.cfg.SideEffectTimeout)
}

// issueCancellationToken stores a fresh token for b. Failure is logged and yields "".
func (s *Service) issueCancellationToken(ctx context.Context, b model.Booking) string {
	raw, err := newCancellationToken()
	if err != nil {
		s.logger.Error("cancellation token generation failed", "booking_id", b.ID, "err", err)
		return ""
	}
	ctx, cancel := s.detached(ctx)
	defer cancel()
	err = s.store.InsertCancellationToken(ctx, model.CancellationToken{
		BookingID: b.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().UTC().Add(s.cfg.CancelTokenTTL),
	})
	if err != nil {
		s.logger.Error("cancellation token insert failed", "booking_id", b.ID, "err", err)
		return ""
	}
	return raw
}

// clientActor names the client in audit rows by whichever contact they gave.
func clientActor(b model.Booking) string {
	switch {
	case b.ClientEmail != "":
		return "client:" + b.ClientEmail
	case b.ClientPhone != "":
		return "client:" + b.ClientPhone
	default:
		return "client"
	}
}

type bookingEvent struct {
	BookingID   string `json:"booking_id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
	StartAt     string `json:"start_at"`
	EndAt       string `json:"end_at"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	Actor       string `json:"actor"`
}

// afterCommit records the audit row and outbox event for a booking change in the
// background. The booking is already committed; failures are only logged.
func (s *Service) afterCommit(ctx context.Context, auditType, actor string, b model.Booking) {
	topic := TopicBookingCreated
	if b.Status == model.StatusCancelled {
		topic = TopicBookingCancelled
	}
	evt := bookingEvent{
		BookingID:   b.ID,
		ProviderID:  b.ProviderID,
		ServiceID:   b.ServiceID,
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		ClientPhone: b.ClientPhone,
		StartAt:     b.StartAt.UTC().Format(time.RFC3339),
		EndAt:       b.EndAt.UTC().Format(time.RFC3339),
		Status:      string(b.Status),
		Actor:       actor,
	}
	if b.CancelledAt != nil {
		evt.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	s.record(ctx, model.AuditEvent{
		EventType: auditType,
		Actor:     actor,
		Metadata: map[string]any{
			"booking_id":  b.ID,
			"provider_id": b.ProviderID,
			"start_at":    evt.StartAt,
		},
	}, "booking", b.ID, topic, evt)
}

// record writes audit and, when topic is set, an outbox event on a detached context.
func (s *Service) record(ctx context.Context, a model.AuditEvent, aggregateType, aggregateID, topic string, payload any) {
	var evt *model.OutboxEvent
	if topic != "" {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("event payload encode failed", "event_type", topic, "err", err)
		} else {
			evt = &model.OutboxEvent{
				AggregateType: aggregateType,
				AggregateID:   aggregateID,
				EventType:     topic,
				Payload:       raw,
			}
		}
	}

	bg, cancel := s.detached(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if err := s.store.RecordEvent(bg, a, evt); err != nil {
			s.logger.Warn("audit record failed", "event_type", a.EventType, "aggregate_id", aggregateID, "err", err)
		}
	}()
}
