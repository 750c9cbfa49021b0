package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/linkbook/libs/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps all state in Postgres. Commits for one provider are serialised
// with a transaction-scoped advisory lock and backed by an exclusion constraint.
type PostgresStore struct {
	pgReader
	pool   *db.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *db.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool, logger: logger}
}

// Migrate applies the embedded schema files in name order. Every file is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(raw)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		s.logger.Info("migration applied", "file", name)
	}
	return nil
}

func (s *PostgresStore) Ready(ctx context.Context) error {
	return db.ReadyCheck(s.pool)(ctx)
}

func (s *PostgresStore) WithProviderLock(ctx context.Context, providerID string, fn func(Tx) error) error {
	// READ COMMITTED gives every statement after the lock a fresh snapshot, so the
	// conflict reads see whatever the previous lock holder committed.
	err := s.pool.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, providerID); err != nil {
			return fmt.Errorf("provider lock: %w", err)
		}
		return fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx})
	})
	if db.HasCode(err, db.CodeExclusionViolation) {
		return fmt.Errorf("%w: %v", ErrOverlap, err)
	}
	return err
}

type pgTx struct {
	pgReader
	tx pgx.Tx
}

// validID lets callers skip a query for ids that cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
