package slotcache

import (
	"context"
	"slices"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	gocache "github.com/patrickmn/go-cache"
)

// Memory is a process-local cache for single-instance deployments.
type Memory struct {
	c *gocache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{c: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]availability.Interval, bool) {
	v, ok := m.c.Get("slots:" + key)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]availability.Interval)), true
}

func (m *Memory) Set(_ context.Context, key string, slots []availability.Interval) {
	m.c.SetDefault("slots:"+key, slices.Clone(slots))
}

func (m *Memory) Generation(_ context.Context, providerID string) int64 {
	v, ok := m.c.Get("gen:" + providerID)
	if !ok {
		return 0
	}
	return v.(int64)
}

func (m *Memory) Bump(_ context.Context, providerID string) {
	key := "gen:" + providerID
	// Add fails when the counter already exists; either way it exists afterwards.
	_ = m.c.Add(key, int64(0), gocache.NoExpiration)
	_, _ = m.c.IncrementInt64(key, 1)
}
