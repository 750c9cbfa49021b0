package slotcache

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []availability.Interval {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return []availability.Interval{
		{Start: base, End: base.Add(time.Hour)},
		{Start: base.Add(15 * time.Minute), End: base.Add(75 * time.Minute)},
	}
}

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", sample())
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	got[0] = availability.Interval{}
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, sample(), again, "callers get a copy")
}

func TestMemory_Bump(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()

	assert.Equal(t, int64(0), m.Generation(ctx, "p1"))
	m.Bump(ctx, "p1")
	m.Bump(ctx, "p1")
	assert.Equal(t, int64(2), m.Generation(ctx, "p1"))
	assert.Equal(t, int64(0), m.Generation(ctx, "p2"))
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	m.Set(context.Background(), "k", sample())
	time.Sleep(40 * time.Millisecond)
	_, ok := m.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestEncodeDecode(t *testing.T) {
	raw, err := encode(sample())
	require.NoError(t, err)
	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	_, err = decode([]byte("{"))
	assert.Error(t, err)
}
