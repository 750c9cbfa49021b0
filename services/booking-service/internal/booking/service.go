package booking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// SlotCache stores computed slot lists. Keys carry a per-provider generation so a
// bump makes every cached list of that provider unreachable.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]availability.Interval, bool)
	Set(ctx context.Context, key string, slots []availability.Interval)
	Generation(ctx context.Context, providerID string) int64
	Bump(ctx context.Context, providerID string)
}

type Config struct {
	// SideEffectTimeout bounds the audit, outbox and token writes that follow a commit.
	SideEffectTimeout time.Duration
	CancelTokenTTL    time.Duration
	SlotStep          time.Duration
}

func (c Config) withDefaults() Config {
	if c.SideEffectTimeout <= 0 {
		c.SideEffectTimeout = 3 * time.Second
	}
	if c.CancelTokenTTL <= 0 {
		c.CancelTokenTTL = 30 * 24 * time.Hour
	}
	if c.SlotStep <= 0 {
		c.SlotStep = availability.DefaultStep
	}
	return c
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSlotCache(c SlotCache) Option {
	return func(s *Service) { s.cache = c }
}

// Service is the booking engine: slot listing, commits and the provider-owned writes
// that change the conflict space.
type Service struct {
	store  storage.Store
	cache  SlotCache
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
	tracer trace.Tracer

	background sync.WaitGroup
}

func NewService(store storage.Store, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		tracer: otel.Tracer("linkbook/booking-service/booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until post-commit side effects started so far have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// conflictSpace is everything a candidate is checked against on one local date.
type conflictSpace struct {
	windows   []availability.Interval
	conflicts []availability.Interval
	buffers   availability.Buffers
	earliest  time.Time
}

func (cs conflictSpace) query(duration, step time.Duration) availability.SlotQuery {
	return availability.SlotQuery{
		Windows:   cs.windows,
		Conflicts: cs.conflicts,
		Duration:  duration,
		Step:      step,
		Buffers:   cs.buffers,
		Earliest:  cs.earliest,
	}
}

func (s *Service) loadSpace(ctx context.Context, r storage.Reader, p model.Provider, svc model.Service, loc *time.Location, date availability.Date, now time.Time) (conflictSpace, error) {
	storedRules, err := r.Rules(ctx, p.ID)
	if err != nil {
		return conflictSpace{}, transient("load rules", err)
	}
	settings, ok, err := r.Settings(ctx, p.ID)
	if err != nil {
		return conflictSpace{}, transient("load settings", err)
	}
	if !ok {
		settings = model.DefaultSettings(p.ID)
	}

	cs := conflictSpace{
		buffers:  availability.Buffers{Before: settings.BufferBefore(), After: settings.BufferAfter()},
		earliest: now.Add(settings.MinNotice()),
	}
	cs.windows = availability.ResolveWindows(loc, date, s.weeklyRules(p.ID, storedRules))
	span, ok := availability.SearchRange(cs.windows, cs.buffers)
	if !ok {
		return cs, nil
	}

	bookings, err := r.BookingsInRange(ctx, p.ID, span)
	if err != nil {
		return conflictSpace{}, transient("load bookings", err)
	}
	blocks, err := r.BusyBlocksInRange(ctx, p.ID, span)
	if err != nil {
		return conflictSpace{}, transient("load busy blocks", err)
	}

	booked := make([]availability.Interval, 0, len(bookings))
	for _, b := range bookings {
		if b.ServiceID == svc.ID && b.EndAt.Sub(b.StartAt) != svc.Duration() {
			s.logger.Warn("booking length does not match service duration",
				"booking_id", b.ID, "service_id", svc.ID,
				"stored_minutes", b.EndAt.Sub(b.StartAt).Minutes(), "service_minutes", svc.DurationMinutes)
		}
		booked = append(booked, availability.Interval{Start: b.StartAt, End: b.EndAt})
	}
	busy := make([]availability.Interval, 0, len(blocks))
	for _, b := range blocks {
		busy = append(busy, availability.Interval{Start: b.StartAt, End: b.EndAt})
	}
	cs.conflicts = availability.EffectiveConflicts(booked, busy, cs.buffers)
	return cs, nil
}

// weeklyRules converts stored rules, skipping rows that fail validation.
func (s *Service) weeklyRules(providerID string, stored []model.AvailabilityRule) []availability.WeeklyRule {
	out := make([]availability.WeeklyRule, 0, len(stored))
	for _, r := range stored {
		rule, err := toWeeklyRule(r)
		if err != nil {
			s.logger.Error("stored availability rule is invalid", "provider_id", providerID, "err", err)
			continue
		}
		out = append(out, rule)
	}
	return out
}

func toWeeklyRule(r model.AvailabilityRule) (availability.WeeklyRule, error) {
	start, err := availability.ParseClock(r.StartTimeLocal)
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	end, err := availability.ParseClock(r.EndTimeLocal)
	if err != nil {
		return availability.WeeklyRule{}, err
	}
	rule := availability.WeeklyRule{Weekday: time.Weekday(r.DayOfWeek), Start: start, End: end}
	return rule, rule.Validate()
}

func (s *Service) lookup(ctx context.Context, providerRef, serviceID string) (model.Provider, model.Service, *time.Location, error) {
	p, err := s.store.ProviderByRef(ctx, providerRef)
	if err != nil {
		if errorsIsNotFound(err) {
			return model.Provider{}, model.Service{}, nil, ErrProviderNotFound
		}
		return model.Provider{}, model.Service{}, nil, transient("load provider", err)
	}
	svc, err := s.store.Service(ctx, p.ID, serviceID)
	if err != nil {
		if errorsIsNotFound(err) {
			return model.Provider{}, model.Service{}, nil, ErrServiceNotFound
		}
		return model.Provider{}, model.Service{}, nil, transient("load service", err)
	}
	if svc.DurationMinutes <= 0 {
		s.logger.Error("service has no duration", "service_id", svc.ID)
		return model.Provider{}, model.Service{}, nil, ErrServiceNotFound
	}
	loc, err := availability.LoadLocation(p.Timezone)
	if err != nil {
		return model.Provider{}, model.Service{}, nil, invalid("timezone", err.Error())
	}
	return p, svc, loc, nil
}

func (s *Service) invalidate(ctx context.Context, providerID string) {
	if s.cache != nil {
		s.cache.Bump(ctx, providerID)
	}
}
