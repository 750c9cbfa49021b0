package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("insert booking: %w", &pgconn.PgError{Code: CodeExclusionViolation})
	assert.True(t, HasCode(err, CodeExclusionViolation))
	assert.False(t, HasCode(err, "23505"))
	assert.False(t, HasCode(errors.New("boom"), CodeExclusionViolation))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get service: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxConns: 25}.withDefaults()
	assert.Equal(t, int32(25), o.MaxConns)
	assert.Equal(t, int32(1), o.MinConns)
	assert.Equal(t, 30*time.Minute, o.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, o.MaxConnIdleTime)
}
