package booking

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
)

const maxBusyBlockSpan = 31 * 24 * time.Hour

// RuleInput is a weekly rule as submitted by a provider.
type RuleInput struct {
	DayOfWeek int
	StartTime string
	EndTime   string
}

// SaveSchedule validates and replaces all weekly rules of a provider in one step.
func (s *Service) SaveSchedule(ctx context.Context, providerID string, in []RuleInput) ([]model.AvailabilityRule, error) {
	rules := make([]model.AvailabilityRule, 0, len(in))
	for _, r := range in {
		start, err := availability.ParseClock(r.StartTime)
		if err != nil {
			return nil, invalid("start_time", err.Error())
		}
		end, err := availability.ParseClock(r.EndTime)
		if err != nil {
			return nil, invalid("end_time", err.Error())
		}
		rule := availability.WeeklyRule{Weekday: time.Weekday(r.DayOfWeek), Start: start, End: end}
		if err := rule.Validate(); err != nil {
			return nil, invalid("rules", err.Error())
		}
		rules = append(rules, model.AvailabilityRule{
			ProviderID:     providerID,
			DayOfWeek:      r.DayOfWeek,
			StartTimeLocal: start.String(),
			EndTimeLocal:   end.String(),
		})
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].DayOfWeek != rules[j].DayOfWeek {
			return rules[i].DayOfWeek < rules[j].DayOfWeek
		}
		return rules[i].StartTimeLocal < rules[j].StartTimeLocal
	})

	if err := s.store.ReplaceRules(ctx, providerID, rules); err != nil {
		if errorsIsNotFound(err) {
			return nil, ErrProviderNotFound
		}
		return nil, transient("save schedule", err)
	}
	s.invalidate(ctx, providerID)
	s.record(ctx, model.AuditEvent{
		EventType: auditScheduleSaved,
		Actor:     "provider:" + providerID,
		Metadata:  map[string]any{"provider_id": providerID, "rules": len(rules)},
	}, "provider", providerID, TopicScheduleUpdated, map[string]any{
		"provider_id": providerID,
		"rules":       scheduleRules(rules),
		"updated_at":  s.now().UTC().Format(time.RFC3339),
	})
	return rules, nil
}

func scheduleRules(rules []model.AvailabilityRule) []map[string]any {
	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]any{
			"day_of_week": r.DayOfWeek,
			"start_time":  r.StartTimeLocal,
			"end_time":    r.EndTimeLocal,
		})
	}
	return out
}

// Schedule returns the stored rules and effective settings of a provider.
func (s *Service) Schedule(ctx context.Context, providerID string) ([]model.AvailabilityRule, model.AvailabilitySettings, error) {
	rules, err := s.store.Rules(ctx, providerID)
	if err != nil {
		return nil, model.AvailabilitySettings{}, transient("load rules", err)
	}
	settings, ok, err := s.store.Settings(ctx, providerID)
	if err != nil {
		return nil, model.AvailabilitySettings{}, transient("load settings", err)
	}
	if !ok {
		settings = model.DefaultSettings(providerID)
	}
	return rules, settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings model.AvailabilitySettings) (model.AvailabilitySettings, error) {
	switch {
	case settings.BufferBeforeMinutes < 0 || settings.BufferBeforeMinutes > 24*60:
		return model.AvailabilitySettings{}, invalid("buffer_before_minutes", "must be between 0 and 1440")
	case settings.BufferAfterMinutes < 0 || settings.BufferAfterMinutes > 24*60:
		return model.AvailabilitySettings{}, invalid("buffer_after_minutes", "must be between 0 and 1440")
	case settings.MinNoticeMinutes < 0 || settings.MinNoticeMinutes > 365*24*60:
		return model.AvailabilitySettings{}, invalid("min_notice_minutes", "must be between 0 and 525600")
	}
	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		if errorsIsNotFound(err) {
			return model.AvailabilitySettings{}, ErrProviderNotFound
		}
		return model.AvailabilitySettings{}, transient("update settings", err)
	}
	s.invalidate(ctx, settings.ProviderID)
	s.record(ctx, model.AuditEvent{
		EventType: auditSettingsUpdated,
		Actor:     "provider:" + settings.ProviderID,
		Metadata: map[string]any{
			"buffer_before_minutes": settings.BufferBeforeMinutes,
			"buffer_after_minutes":  settings.BufferAfterMinutes,
			"min_notice_minutes":    settings.MinNoticeMinutes,
		},
	}, "", "", "", nil)
	return settings, nil
}

type BusyBlockInput struct {
	StartAt time.Time
	EndAt   time.Time
	Title   string
}

func (s *Service) CreateBusyBlock(ctx context.Context, providerID string, in BusyBlockInput) (model.BusyBlock, error) {
	span := availability.Interval{Start: in.StartAt.UTC(), End: in.EndAt.UTC()}
	switch {
	case in.StartAt.IsZero() || in.EndAt.IsZero():
		return model.BusyBlock{}, invalid("start_at", "start_at and end_at are required")
	case !span.Valid():
		return model.BusyBlock{}, invalid("end_at", "must be after start_at")
	case span.Duration() > maxBusyBlockSpan:
		return model.BusyBlock{}, invalid("end_at", "busy block may span at most 31 days")
	}
	b := model.BusyBlock{
		ProviderID: providerID,
		StartAt:    span.Start,
		EndAt:      span.End,
		Title:      strings.TrimSpace(in.Title),
	}
	if err := s.store.CreateBusyBlock(ctx, &b); err != nil {
		if errorsIsNotFound(err) {
			return model.BusyBlock{}, ErrProviderNotFound
		}
		return model.BusyBlock{}, transient("create busy block", err)
	}
	s.invalidate(ctx, providerID)
	s.record(ctx, model.AuditEvent{
		EventType: auditBusyBlockCreated,
		Actor:     "provider:" + providerID,
		Metadata:  map[string]any{"busy_block_id": b.ID, "start_at": b.StartAt.Format(time.RFC3339), "end_at": b.EndAt.Format(time.RFC3339)},
	}, "", "", "", nil)
	return b, nil
}

func (s *Service) ListBusyBlocks(ctx context.Context, providerID string, from, to time.Time) ([]model.BusyBlock, error) {
	span := availability.Interval{Start: from.UTC(), End: to.UTC()}
	if !span.Valid() {
		return nil, invalid("to", "must be after from")
	}
	blocks, err := s.store.BusyBlocksInRange(ctx, providerID, span)
	if err != nil {
		return nil, transient("list busy blocks", err)
	}
	return blocks, nil
}

func (s *Service) DeleteBusyBlock(ctx context.Context, providerID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("id", "required")
	}
	if err := s.store.DeleteBusyBlock(ctx, providerID, id); err != nil {
		if errorsIsNotFound(err) {
			return ErrBusyBlockNotFound
		}
		return transient("delete busy block", err)
	}
	s.invalidate(ctx, providerID)
	s.record(ctx, model.AuditEvent{
		EventType: auditBusyBlockDeleted,
		Actor:     "provider:" + providerID,
		Metadata:  map[string]any{"busy_block_id": id},
	}, "", "", "", nil)
	return nil
}

func (s *Service) ListBookings(ctx context.Context, providerID string, limit int) ([]model.Booking, error) {
	out, err := s.store.ListBookings(ctx, providerID, limit)
	if err != nil {
		return nil, transient("list bookings", err)
	}
	return out, nil
}
