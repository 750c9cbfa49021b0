package storage

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

const bookingColumns = `id::text, provider_id::text, service_id::text, client_name, client_email,
			client_phone, notes, start_at, end_at, status, created_at, cancelled_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (model.Booking, error) {
	var b model.Booking
	var status string
	var cancelledAt *time.Time
	if err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.ServiceID,
		&b.ClientName,
		&b.ClientEmail,
		&b.ClientPhone,
		&b.Notes,
		&b.StartAt,
		&b.EndAt,
		&status,
		&b.CreatedAt,
		&cancelledAt,
	); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.StartAt, b.EndAt, b.CreatedAt = b.StartAt.UTC(), b.EndAt.UTC(), b.CreatedAt.UTC()
	if cancelledAt != nil {
		at := cancelledAt.UTC()
		b.CancelledAt = &at
	}
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (t *pgTx) BookingByIdempotencyKey(ctx context.Context, providerID, key string) (model.Booking, bool, error) {
	if key == "" {
		return model.Booking{}, false, nil
	}
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1 AND idempotency_key = $2
	`, providerID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

func (t *pgTx) InsertBooking(ctx context.Context, b *model.Booking, idempotencyKey string) error {
	if b.Status == "" {
		b.Status = model.StatusConfirmed
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings
			(provider_id, service_id, client_name, client_email, client_phone, notes, start_at, end_at, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING id::text, created_at
	`, b.ProviderID, b.ServiceID, b.ClientName, b.ClientEmail, b.ClientPhone, b.Notes,
		b.StartAt.UTC(), b.EndAt.UTC(), string(b.Status), idempotencyKey).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return nil
}

func (s *PostgresStore) Booking(ctx context.Context, providerID, bookingID string) (model.Booking, error) {
	if !validID(providerID) || !validID(bookingID) {
		return model.Booking{}, ErrNotFound
	}
	b, err := scanBooking(s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND provider_id = $2
	`, bookingID, providerID))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	if !validID(providerID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		ORDER BY start_at DESC
		LIMIT $2
	`, providerID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (s *PostgresStore) CancelBooking(ctx context.Context, providerID, bookingID string, at time.Time) (model.Booking, error) {
	if !validID(providerID) || !validID(bookingID) {
		return model.Booking{}, ErrNotFound
	}
	var out model.Booking
	err := s.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		out, err = cancelLocked(ctx, tx, providerID, bookingID, at)
		return err
	})
	return out, err
}

// cancelLocked cancels a booking inside tx. An empty providerID matches any provider.
func cancelLocked(ctx context.Context, tx pgx.Tx, providerID, bookingID string, at time.Time) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND ($2 = '' OR provider_id::text = $2)
		FOR UPDATE
	`, bookingID, providerID))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	if b.Status == model.StatusCancelled {
		return b, nil
	}
	b, err = scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = $2
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, at.UTC()))
	if err != nil {
		return model.Booking{}, fmt.Errorf("cancel booking: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) InsertCancellationToken(ctx context.Context, t model.CancellationToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO booking_cancellation_tokens (booking_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			used_at = NULL
	`, t.BookingID, t.TokenHash, t.ExpiresAt.UTC())
	return err
}

func (s *PostgresStore) RedeemCancellationToken(ctx context.Context, bookingID, tokenHash string, at time.Time) (model.Booking, error) {
	if !validID(bookingID) {
		return model.Booking{}, ErrNotFound
	}
	var out model.Booking
	err := s.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var stored string
		var expiresAt time.Time
		var usedAt *time.Time
		err := tx.QueryRow(ctx, `
			SELECT token_hash, expires_at, used_at
			FROM booking_cancellation_tokens
			WHERE booking_id = $1
			FOR UPDATE
		`, bookingID).Scan(&stored, &expiresAt, &usedAt)
		if err != nil {
			return notFound(err)
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(tokenHash)) != 1 {
			return ErrNotFound
		}
		if usedAt != nil {
			return ErrTokenUsed
		}
		if !at.Before(expiresAt) {
			return ErrTokenExpired
		}
		if _, err := tx.Exec(ctx, `
			UPDATE booking_cancellation_tokens SET used_at = $2 WHERE booking_id = $1
		`, bookingID, at.UTC()); err != nil {
			return err
		}
		out, err = cancelLocked(ctx, tx, "", bookingID, at)
		return err
	})
	return out, err
}
