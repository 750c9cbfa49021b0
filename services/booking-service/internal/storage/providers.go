package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

type pgReader struct {
	q queryer
}

// providerByRefQuery matches usernames case-insensitively, backed by providers_username_lower_key.
const providerByRefQuery = `
		SELECT id::text, username, timezone
		FROM providers
		WHERE id::text = $1 OR lower(username) = lower($1)
		ORDER BY (id::text = $1) DESC
		LIMIT 1
	`

func (r pgReader) ProviderByRef(ctx context.Context, ref string) (model.Provider, error) {
	var p model.Provider
	err := r.q.QueryRow(ctx, providerByRefQuery, ref).Scan(&p.ID, &p.Username, &p.Timezone)
	if err != nil {
		return model.Provider{}, notFound(err)
	}
	return p, nil
}

func (r pgReader) Service(ctx context.Context, providerID, serviceID string) (model.Service, error) {
	if !validID(providerID) || !validID(serviceID) {
		return model.Service{}, ErrNotFound
	}
	var svc model.Service
	err := r.q.QueryRow(ctx, `
		SELECT id::text, provider_id::text, name, duration_minutes
		FROM services
		WHERE provider_id = $1 AND id = $2
	`, providerID, serviceID).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.DurationMinutes)
	if err != nil {
		return model.Service{}, notFound(err)
	}
	return svc, nil
}

func (r pgReader) Rules(ctx context.Context, providerID string) ([]model.AvailabilityRule, error) {
	if !validID(providerID) {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT day_of_week, start_time_local::text, end_time_local::text
		FROM availability_rules
		WHERE provider_id = $1
		ORDER BY day_of_week, start_time_local
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		rule := model.AvailabilityRule{ProviderID: providerID}
		if err := rows.Scan(&rule.DayOfWeek, &rule.StartTimeLocal, &rule.EndTimeLocal); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

func (r pgReader) Settings(ctx context.Context, providerID string) (model.AvailabilitySettings, bool, error) {
	if !validID(providerID) {
		return model.AvailabilitySettings{}, false, nil
	}
	s := model.AvailabilitySettings{ProviderID: providerID}
	err := r.q.QueryRow(ctx, `
		SELECT buffer_before_minutes, buffer_after_minutes, min_notice_minutes
		FROM availability_settings
		WHERE provider_id = $1
	`, providerID).Scan(&s.BufferBeforeMinutes, &s.BufferAfterMinutes, &s.MinNoticeMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AvailabilitySettings{}, false, nil
	}
	if err != nil {
		return model.AvailabilitySettings{}, false, err
	}
	return s, true, nil
}

func (r pgReader) BookingsInRange(ctx context.Context, providerID string, span availability.Interval) ([]model.Booking, error) {
	if !validID(providerID) {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
			AND status <> 'cancelled'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, providerID, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r pgReader) BusyBlocksInRange(ctx context.Context, providerID string, span availability.Interval) ([]model.BusyBlock, error) {
	if !validID(providerID) {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id::text, provider_id::text, start_at, end_at, title, created_at
		FROM busy_blocks
		WHERE provider_id = $1
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, providerID, span.Start, span.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []model.BusyBlock
	for rows.Next() {
		var b model.BusyBlock
		if err := rows.Scan(&b.ID, &b.ProviderID, &b.StartAt, &b.EndAt, &b.Title, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.StartAt, b.EndAt, b.CreatedAt = b.StartAt.UTC(), b.EndAt.UTC(), b.CreatedAt.UTC()
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func (s *PostgresStore) ReplaceRules(ctx context.Context, providerID string, rules []model.AvailabilityRule) error {
	if !validID(providerID) {
		return ErrNotFound
	}
	return s.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE provider_id = $1`, providerID); err != nil {
			return fmt.Errorf("clear rules: %w", err)
		}
		for _, rule := range rules {
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_rules (provider_id, day_of_week, start_time_local, end_time_local)
				VALUES ($1, $2, $3::time, $4::time)
			`, providerID, rule.DayOfWeek, rule.StartTimeLocal, rule.EndTimeLocal)
			if err != nil {
				return fmt.Errorf("insert rule: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) UpsertSettings(ctx context.Context, settings model.AvailabilitySettings) error {
	if !validID(settings.ProviderID) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO availability_settings (provider_id, buffer_before_minutes, buffer_after_minutes, min_notice_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id) DO UPDATE
		SET buffer_before_minutes = EXCLUDED.buffer_before_minutes,
			buffer_after_minutes = EXCLUDED.buffer_after_minutes,
			min_notice_minutes = EXCLUDED.min_notice_minutes,
			updated_at = now()
	`, settings.ProviderID, settings.BufferBeforeMinutes, settings.BufferAfterMinutes, settings.MinNoticeMinutes)
	return err
}

func (s *PostgresStore) CreateBusyBlock(ctx context.Context, b *model.BusyBlock) error {
	if !validID(b.ProviderID) {
		return ErrNotFound
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO busy_blocks (provider_id, start_at, end_at, title)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, b.ProviderID, b.StartAt.UTC(), b.EndAt.UTC(), b.Title).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return nil
}

func (s *PostgresStore) DeleteBusyBlock(ctx context.Context, providerID, id string) error {
	if !validID(providerID) || !validID(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM busy_blocks WHERE id = $1 AND provider_id = $2`, id, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
