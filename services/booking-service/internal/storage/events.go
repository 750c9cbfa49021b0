package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	otelx "github.com/md-rashed-zaman/linkbook/libs/otel"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

func (s *PostgresStore) RecordEvent(ctx context.Context, a model.AuditEvent, evt *model.OutboxEvent) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	return s.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO audit_events (event_type, actor, metadata)
			VALUES ($1, NULLIF($2, ''), $3)
		`, a.EventType, a.Actor, metadata); err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		if evt == nil {
			return nil
		}
		if evt.EventID == "" {
			evt.EventID = uuid.NewString()
		}
		traceparent, tracestate := otelx.TraceContextStrings(ctx)
		if _, err := tx.Exec(ctx, `
			INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, evt.EventID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, traceparent, tracestate); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ProcessUnpublished(ctx context.Context, limit int, fn func([]model.OutboxEvent) error) error {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_id::text, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
			FROM outbox_events
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		var events []model.OutboxEvent
		var ids []int64
		for rows.Next() {
			var e model.OutboxEvent
			if err := rows.Scan(&e.ID, &e.EventID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.TraceParent, &e.TraceState, &e.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			events = append(events, e)
			ids = append(ids, e.ID)
		}
		rows.Close()
		if rows.Err() != nil {
			return rows.Err()
		}
		if len(events) == 0 {
			return nil
		}

		if err := fn(events); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids)
		return err
	})
}
