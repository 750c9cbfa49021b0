package availability

import "time"

// SearchPadding widens the conflict query past the windows so that bookings stored
// near a day boundary, in any zone, are still fetched.
const SearchPadding = 14 * time.Hour

// SearchRange is the UTC range whose bookings and busy blocks can affect the given
// windows. ok is false when there are no windows.
func SearchRange(windows []Interval, buf Buffers) (Interval, bool) {
	if len(windows) == 0 {
		return Interval{}, false
	}
	lo, hi := windows[0].Start, windows[0].End
	for _, w := range windows[1:] {
		if w.Start.Before(lo) {
			lo = w.Start
		}
		if w.End.After(hi) {
			hi = w.End
		}
	}
	return Interval{
		Start: lo.Add(-buf.Before - SearchPadding).UTC(),
		End:   hi.Add(buf.After + SearchPadding).UTC(),
	}, true
}

// EffectiveConflicts merges stored bookings and busy blocks into one list of intervals
// a candidate must not overlap. Bookings are padded with the current buffers, busy
// blocks are taken as-is.
func EffectiveConflicts(bookings, busy []Interval, buf Buffers) []Interval {
	out := make([]Interval, 0, len(bookings)+len(busy))
	for _, b := range bookings {
		out = append(out, buf.Apply(b))
	}
	out = append(out, busy...)
	return out
}

func overlapsAny(candidate Interval, conflicts []Interval) bool {
	for _, c := range conflicts {
		if Overlaps(candidate, c) {
			return true
		}
	}
	return false
}
