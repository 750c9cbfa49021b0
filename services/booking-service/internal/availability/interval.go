package availability

import "time"

// Interval is a half-open range [Start, End) of absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps is the only overlap predicate in the service. Touching ranges do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && iv.End.After(iv.Start)
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Expand pads the interval by before at the start and after at the end.
func (iv Interval) Expand(before, after time.Duration) Interval {
	return Interval{Start: iv.Start.Add(-before), End: iv.End.Add(after)}
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) UTC() Interval {
	return Interval{Start: iv.Start.UTC(), End: iv.End.UTC()}
}

// Buffers is the padding a provider keeps around every booking.
type Buffers struct {
	Before time.Duration
	After  time.Duration
}

func (b Buffers) Apply(iv Interval) Interval {
	return iv.Expand(b.Before, b.After)
}
