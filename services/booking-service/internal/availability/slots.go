package availability

import (
	"errors"
	"iter"
	"time"
)

// DefaultStep is the spacing between candidate slot starts.
const DefaultStep = 15 * time.Minute

var (
	ErrTooSoon     = errors.New("slot starts before the minimum notice")
	ErrConflict    = errors.New("slot overlaps an existing booking or busy block")
	ErrOutOfWindow = errors.New("slot is outside the provider's availability")
)

// SlotQuery carries everything slot generation needs. Conflicts must already be
// buffer-adjusted, see EffectiveConflicts.
type SlotQuery struct {
	Windows   []Interval
	Conflicts []Interval
	Duration  time.Duration
	Step      time.Duration
	Buffers   Buffers
	// Earliest is now plus the minimum notice.
	Earliest time.Time
}

// CheckCandidate applies the notice and overlap rules to one candidate. The same
// check runs for listing and for committing a booking.
func CheckCandidate(candidate Interval, conflicts []Interval, buf Buffers, earliest time.Time) error {
	if candidate.Start.Before(earliest) {
		return ErrTooSoon
	}
	if overlapsAny(buf.Apply(candidate), conflicts) {
		return ErrConflict
	}
	return nil
}

// WithinAny reports whether candidate fits entirely inside one window.
func WithinAny(candidate Interval, windows []Interval) bool {
	for _, w := range windows {
		if w.Contains(candidate) {
			return true
		}
	}
	return false
}

// Slots yields bookable slots in strictly ascending start order, with no duplicates
// when windows overlap. The sequence is lazy and may be stopped early.
func Slots(q SlotQuery) iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		if q.Duration <= 0 {
			return
		}
		step := q.Step
		if step <= 0 {
			step = DefaultStep
		}

		// One cursor per window, merged by always emitting the smallest start. Every
		// window stays on its own grid; a start shared by several windows is emitted once.
		windows := q.Windows
		cursors := make([]time.Time, len(windows))
		for i, w := range windows {
			cursors[i] = w.Start
		}
		fits := func(i int) bool {
			return !cursors[i].Add(q.Duration).After(windows[i].End)
		}
		for {
			next := -1
			for i := range windows {
				if fits(i) && (next < 0 || cursors[i].Before(cursors[next])) {
					next = i
				}
			}
			if next < 0 {
				return
			}
			start := cursors[next]
			for i := range windows {
				if fits(i) && cursors[i].Equal(start) {
					cursors[i] = cursors[i].Add(step)
				}
			}
			candidate := Interval{Start: start, End: start.Add(q.Duration)}
			if CheckCandidate(candidate, q.Conflicts, q.Buffers, q.Earliest) != nil {
				continue
			}
			if !yield(candidate) {
				return
			}
		}
	}
}

// Collect drains up to limit slots; limit <= 0 means all.
func Collect(seq iter.Seq[Interval], limit int) []Interval {
	out := []Interval{}
	for s := range seq {
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
