package availability

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	secondsPerDay   = 24 * 60 * 60
	DefaultTimezone = "UTC"
)

var (
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrInvalidClock    = errors.New("time must be HH:MM or HH:MM:SS")
	ErrInvalidRule     = errors.New("invalid availability rule")
	ErrInvalidTimezone = errors.New("unknown timezone")
)

// ClockTime is a local wall-clock time of day, stored as seconds since midnight.
// 24:00:00 is accepted and means the following midnight.
type ClockTime int

func ParseClock(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	var fields [3]int
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
		}
		fields[i] = v
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if m > 59 || sec > 59 || h > 24 || (h == 24 && (m != 0 || sec != 0)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return ClockTime(h*3600 + m*60 + sec), nil
}

func MustClock(raw string) ClockTime {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	sec := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

// WeeklyRule is one recurring availability range in the provider's local time.
type WeeklyRule struct {
	Weekday time.Weekday
	Start   ClockTime
	End     ClockTime
}

func (r WeeklyRule) Validate() error {
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidRule, r.Weekday)
	}
	if r.Start < 0 || int(r.End) > secondsPerDay {
		return fmt.Errorf("%w: time out of range", ErrInvalidRule)
	}
	if r.End <= r.Start {
		return fmt.Errorf("%w: end %s must be after start %s", ErrInvalidRule, r.End, r.Start)
	}
	return nil
}

// Date is a calendar date with no time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Weekday of a calendar date does not depend on the zone; noon UTC avoids any normalisation.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// At returns the absolute instant of wall-clock c on date d in loc. The zone offset is
// the one in force at that wall time, so DST transitions are honoured.
func (d Date) At(c ClockTime, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, int(c), 0, loc)
}

// LoadLocation resolves an IANA name; empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// ResolveWindows turns the rules matching date's weekday into UTC windows, sorted by
// start. Invalid rules are skipped. No matching rule yields an empty result.
func ResolveWindows(loc *time.Location, date Date, rules []WeeklyRule) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	weekday := date.Weekday()

	var windows []Interval
	for _, r := range rules {
		if r.Weekday != weekday || r.Validate() != nil {
			continue
		}
		w := Interval{Start: date.At(r.Start, loc), End: date.At(r.End, loc)}.UTC()
		if !w.Valid() {
			// Spring-forward gaps can collapse a short rule.
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Start.Equal(windows[j].Start) {
			return windows[i].End.Before(windows[j].End)
		}
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}
