package booking

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrSlotUnavailable   = errors.New("slot is no longer available")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBusyBlockNotFound = errors.New("busy block not found")
	ErrInvalidToken      = errors.New("invalid or expired cancellation token")
)

// ValidationError reports a bad input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransientStoreError wraps an unexpected store failure. The caller may retry.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

func transient(op string, err error) error {
	return &TransientStoreError{Op: op, Err: err}
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
