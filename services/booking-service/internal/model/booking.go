package model

import "time"

type BookingStatus string

const (
	StatusConfirmed         BookingStatus = "confirmed"
	StatusCancelled         BookingStatus = "cancelled"
	StatusPendingReschedule BookingStatus = "pending_reschedule"
	StatusCompleted         BookingStatus = "completed"
)

// Blocking reports whether a booking in this status occupies its time range.
func (s BookingStatus) Blocking() bool {
	return s != StatusCancelled
}

type Booking struct {
	ID          string
	ProviderID  string
	ServiceID   string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Notes       string
	StartAt     time.Time
	EndAt       time.Time
	Status      BookingStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// CancellationToken is stored by hash only. The raw token is handed to the client once.
type CancellationToken struct {
	BookingID string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type AuditEvent struct {
	EventType string
	Actor     string
	Metadata  map[string]any
	CreatedAt time.Time
}

// OutboxEvent is a domain event waiting to be published.
type OutboxEvent struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	TraceParent   string
	TraceState    string
	CreatedAt     time.Time
}
