package model

import "time"

// Provider is the owner of a booking page.
type Provider struct {
	ID       string
	Username string
	Timezone string
}

type Service struct {
	ID              string
	ProviderID      string
	Name            string
	DurationMinutes int
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// AvailabilityRule is a stored weekly rule. Times are local wall-clock strings, HH:MM:SS.
type AvailabilityRule struct {
	ProviderID     string
	DayOfWeek      int
	StartTimeLocal string
	EndTimeLocal   string
}

const DefaultMinNoticeMinutes = 120

type AvailabilitySettings struct {
	ProviderID          string
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	MinNoticeMinutes    int
}

// DefaultSettings applies when a provider never saved settings.
func DefaultSettings(providerID string) AvailabilitySettings {
	return AvailabilitySettings{ProviderID: providerID, MinNoticeMinutes: DefaultMinNoticeMinutes}
}

func (s AvailabilitySettings) BufferBefore() time.Duration {
	return time.Duration(s.BufferBeforeMinutes) * time.Minute
}

func (s AvailabilitySettings) BufferAfter() time.Duration {
	return time.Duration(s.BufferAfterMinutes) * time.Minute
}

func (s AvailabilitySettings) MinNotice() time.Duration {
	return time.Duration(s.MinNoticeMinutes) * time.Minute
}

type BusyBlock struct {
	ID         string
	ProviderID string
	StartAt    time.Time
	EndAt      time.Time
	Title      string
	CreatedAt  time.Time
}
