package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrOverlap is returned when the store itself rejects an overlapping booking.
	ErrOverlap      = errors.New("booking overlaps an existing booking")
	ErrTokenUsed    = errors.New("cancellation token already used")
	ErrTokenExpired = errors.New("cancellation token expired")
)

// Reader is the read side shared by the slot listing path and the commit path.
type Reader interface {
	// ProviderByRef finds a provider by id or by username, ignoring case.
	ProviderByRef(ctx context.Context, ref string) (model.Provider, error)
	Service(ctx context.Context, providerID, serviceID string) (model.Service, error)
	Rules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error)
	// Settings returns ok=false when the provider never saved settings.
	Settings(ctx context.Context, providerID string) (model.AvailabilitySettings, bool, error)
	// BookingsInRange returns non-cancelled bookings whose stored range overlaps r.
	BookingsInRange(ctx context.Context, providerID string, r availability.Interval) ([]model.Booking, error)
	BusyBlocksInRange(ctx context.Context, providerID string, r availability.Interval) ([]model.BusyBlock, error)
}

// Tx is the view of the store inside a provider's atomic section.
type Tx interface {
	Reader
	// BookingByIdempotencyKey returns ok=false when the key was never used.
	BookingByIdempotencyKey(ctx context.Context, providerID, key string) (model.Booking, bool, error)
	// InsertBooking assigns ID and CreatedAt. An empty key stores no idempotency record.
	InsertBooking(ctx context.Context, b *model.Booking, idempotencyKey string) error
}

type Store interface {
	Reader

	// WithProviderLock runs fn while no other commit for the same provider can run.
	// Writes made through the Tx are applied only when fn returns nil.
	WithProviderLock(ctx context.Context, providerID string, fn func(Tx) error) error

	ReplaceRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) error
	UpsertSettings(ctx context.Context, s model.AvailabilitySettings) error
	CreateBusyBlock(ctx context.Context, b *model.BusyBlock) error
	DeleteBusyBlock(ctx context.Context, providerID, id string) error

	Booking(ctx context.Context, providerID, bookingID string) (model.Booking, error)
	ListBookings(ctx context.Context, providerID string, limit int) ([]model.Booking, error)
	// CancelBooking soft-deletes a booking. Cancelling twice returns the first cancellation.
	CancelBooking(ctx context.Context, providerID, bookingID string, at time.Time) (model.Booking, error)

	InsertCancellationToken(ctx context.Context, t model.CancellationToken) error
	// RedeemCancellationToken checks the hashed token, marks it used and cancels the booking
	// in one step.
	RedeemCancellationToken(ctx context.Context, bookingID, tokenHash string, at time.Time) (model.Booking, error)

	// RecordEvent writes an audit row and, when evt is non-nil, an outbox row together.
	RecordEvent(ctx context.Context, a model.AuditEvent, evt *model.OutboxEvent) error
	// ProcessUnpublished hands fn a batch of unpublished outbox events and marks them
	// published when fn returns nil.
	ProcessUnpublished(ctx context.Context, limit int, fn func([]model.OutboxEvent) error) error

	Ready(ctx context.Context) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
