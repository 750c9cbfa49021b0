package storage

import (
	"context"
	"crypto/subtle"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/linkbook/libs/otel"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

// MemoryStore keeps everything in process. It backs local runs without a database
// and the engine tests. Commits for one provider are serialised by a per-provider mutex.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[string]model.Provider
	services  map[string]model.Service
	rules     map[string][]model.AvailabilityRule
	settings  map[string]model.AvailabilitySettings
	blocks    map[string]model.BusyBlock
	bookings  map[string]model.Booking
	idem      map[string]string
	tokens    map[string]model.CancellationToken
	audit     []model.AuditEvent
	outbox    []model.OutboxEvent
	nextEvent int64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: map[string]model.Provider{},
		services:  map[string]model.Service{},
		rules:     map[string][]model.AvailabilityRule{},
		settings:  map[string]model.AvailabilitySettings{},
		blocks:    map[string]model.BusyBlock{},
		bookings:  map[string]model.Booking{},
		idem:      map[string]string{},
		tokens:    map[string]model.CancellationToken{},
		locks:     map[string]*sync.Mutex{},
	}
}

// AddProvider registers a provider. An empty ID is generated.
func (m *MemoryStore) AddProvider(p model.Provider) model.Provider {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Timezone == "" {
		p.Timezone = availability.DefaultTimezone
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return p
}

func (m *MemoryStore) AddService(s model.Service) model.Service {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
	return s
}

// AuditEvents returns a copy of the recorded audit trail.
func (m *MemoryStore) AuditEvents() []model.AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.audit)
}

func (m *MemoryStore) Ready(context.Context) error { return nil }

func (m *MemoryStore) ProviderByRef(_ context.Context, ref string) (model.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.providers[ref]; ok {
		return p, nil
	}
	for _, p := range m.providers {
		if strings.EqualFold(p.Username, ref) {
			return p, nil
		}
	}
	return model.Provider{}, ErrNotFound
}

func (m *MemoryStore) Service(_ context.Context, providerID, serviceID string) (model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[serviceID]
	if !ok || s.ProviderID != providerID {
		return model.Service{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Rules(_ context.Context, providerID string) ([]model.AvailabilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rules[providerID]), nil
}

func (m *MemoryStore) Settings(_ context.Context, providerID string) (model.AvailabilitySettings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[providerID]
	return s, ok, nil
}

func (m *MemoryStore) BookingsInRange(_ context.Context, providerID string, span availability.Interval) ([]model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ProviderID != providerID || !b.Status.Blocking() {
			continue
		}
		if availability.Overlaps(availability.Interval{Start: b.StartAt, End: b.EndAt}, span) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *MemoryStore) BusyBlocksInRange(_ context.Context, providerID string, span availability.Interval) ([]model.BusyBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.BusyBlock
	for _, b := range m.blocks {
		if b.ProviderID != providerID {
			continue
		}
		if availability.Overlaps(availability.Interval{Start: b.StartAt, End: b.EndAt}, span) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *MemoryStore) providerLock(providerID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.locks[providerID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[providerID] = l
	}
	return l
}

func (m *MemoryStore) WithProviderLock(ctx context.Context, providerID string, fn func(Tx) error) error {
	l := m.providerLock(providerID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{MemoryStore: m}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// memTx buffers inserts until the locked section succeeds.
type memTx struct {
	*MemoryStore
	pending []pendingBooking
}

type pendingBooking struct {
	booking model.Booking
	key     string
}

func idemKey(providerID, key string) string {
	return providerID + "\x00" + key
}

func (t *memTx) BookingByIdempotencyKey(_ context.Context, providerID, key string) (model.Booking, bool, error) {
	if key == "" {
		return model.Booking{}, false, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.idem[idemKey(providerID, key)]
	if !ok {
		return model.Booking{}, false, nil
	}
	return t.bookings[id], true, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking, idempotencyKey string) error {
	if b.Status == "" {
		b.Status = model.StatusConfirmed
	}
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	b.StartAt, b.EndAt = b.StartAt.UTC(), b.EndAt.UTC()
	t.pending = append(t.pending, pendingBooking{booking: *b, key: idempotencyKey})
	return nil
}

func (t *memTx) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Same guarantee as the exclusion constraint: raw ranges of live bookings never overlap.
	for _, p := range t.pending {
		span := availability.Interval{Start: p.booking.StartAt, End: p.booking.EndAt}
		for _, other := range t.bookings {
			if other.ProviderID != p.booking.ProviderID || !other.Status.Blocking() {
				continue
			}
			if availability.Overlaps(span, availability.Interval{Start: other.StartAt, End: other.EndAt}) {
				return ErrOverlap
			}
		}
	}
	for _, p := range t.pending {
		t.bookings[p.booking.ID] = p.booking
		if p.key != "" {
			t.idem[idemKey(p.booking.ProviderID, p.key)] = p.booking.ID
		}
	}
	return nil
}

func (m *MemoryStore) ReplaceRules(_ context.Context, providerID string, rules []model.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[providerID]; !ok {
		return ErrNotFound
	}
	m.rules[providerID] = slices.Clone(rules)
	return nil
}

func (m *MemoryStore) UpsertSettings(_ context.Context, s model.AvailabilitySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[s.ProviderID]; !ok {
		return ErrNotFound
	}
	m.settings[s.ProviderID] = s
	return nil
}

func (m *MemoryStore) CreateBusyBlock(_ context.Context, b *model.BusyBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[b.ProviderID]; !ok {
		return ErrNotFound
	}
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	b.StartAt, b.EndAt = b.StartAt.UTC(), b.EndAt.UTC()
	m.blocks[b.ID] = *b
	return nil
}

func (m *MemoryStore) DeleteBusyBlock(_ context.Context, providerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	if !ok || b.ProviderID != providerID {
		return ErrNotFound
	}
	delete(m.blocks, id)
	return nil
}

func (m *MemoryStore) Booking(_ context.Context, providerID, bookingID string) (model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.ProviderID != providerID {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListBookings(_ context.Context, providerID string, limit int) ([]model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CancelBooking(_ context.Context, providerID, bookingID string, at time.Time) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.ProviderID != providerID {
		return model.Booking{}, ErrNotFound
	}
	return m.cancelLocked(b, at), nil
}

func (m *MemoryStore) cancelLocked(b model.Booking, at time.Time) model.Booking {
	if b.Status == model.StatusCancelled {
		return b
	}
	at = at.UTC()
	b.Status = model.StatusCancelled
	b.CancelledAt = &at
	m.bookings[b.ID] = b
	return b
}

func (m *MemoryStore) InsertCancellationToken(_ context.Context, t model.CancellationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[t.BookingID]; !ok {
		return ErrNotFound
	}
	t.UsedAt = nil
	m.tokens[t.BookingID] = t
	return nil
}

func (m *MemoryStore) RedeemCancellationToken(_ context.Context, bookingID, tokenHash string, at time.Time) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[bookingID]
	if !ok || subtle.ConstantTimeCompare([]byte(t.TokenHash), []byte(tokenHash)) != 1 {
		return model.Booking{}, ErrNotFound
	}
	if t.UsedAt != nil {
		return model.Booking{}, ErrTokenUsed
	}
	if !at.Before(t.ExpiresAt) {
		return model.Booking{}, ErrTokenExpired
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	used := at.UTC()
	t.UsedAt = &used
	m.tokens[bookingID] = t
	return m.cancelLocked(b, at), nil
}

// MaxMemoryOutbox bounds the pending outbox rows a MemoryStore keeps. With no
// publisher draining it the oldest rows are dropped.
const MaxMemoryOutbox = 1024

func (m *MemoryStore) RecordEvent(ctx context.Context, a model.AuditEvent, evt *model.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, a)
	if evt == nil {
		return nil
	}
	e := *evt
	m.nextEvent++
	e.ID = m.nextEvent
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.TraceParent, e.TraceState = otelx.TraceContextStrings(ctx)
	e.CreatedAt = time.Now().UTC()
	m.outbox = append(m.outbox, e)
	if over := len(m.outbox) - MaxMemoryOutbox; over > 0 {
		m.outbox = slices.Delete(m.outbox, 0, over)
	}
	return nil
}

func (m *MemoryStore) ProcessUnpublished(_ context.Context, limit int, fn func([]model.OutboxEvent) error) error {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(limit, len(m.outbox))
	if n == 0 {
		return nil
	}
	if err := fn(slices.Clone(m.outbox[:n])); err != nil {
		return err
	}
	m.outbox = slices.Delete(m.outbox, 0, n)
	return nil
}
