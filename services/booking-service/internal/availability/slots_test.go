package availability

import (
	"slices"
	"testing"
	"time"
)

// 2026-01-05 is a Monday.
var monday = Date{Year: 2026, Month: time.January, Day: 5}

func at(h, m int) time.Time {
	return time.Date(2026, 1, 5, h, m, 0, 0, time.UTC)
}

func simpleDay() []Interval {
	rules := []WeeklyRule{{Weekday: time.Monday, Start: MustClock("09:00:00"), End: MustClock("17:00:00")}}
	return ResolveWindows(time.UTC, monday, rules)
}

func TestSlots_SimpleDay(t *testing.T) {
	slots := Collect(Slots(SlotQuery{
		Windows:  simpleDay(),
		Duration: time.Hour,
		Earliest: at(0, 0),
	}), 0)

	// 09:00 .. 16:00 every 15 minutes.
	if len(slots) != 29 {
		t.Fatalf("expected 29 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(9, 0)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Start.Format(time.RFC3339))
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(at(16, 0)) || !last.End.Equal(at(17, 0)) {
		t.Fatalf("expected last slot 16:00-17:00, got %s-%s", last.Start.Format(time.RFC3339), last.End.Format(time.RFC3339))
	}
	for i := 1; i < len(slots); i++ {
		if got := slots[i].Start.Sub(slots[i-1].Start); got != DefaultStep {
			t.Fatalf("slot %d: expected 15m step, got %s", i, got)
		}
	}
}

func TestSlots_BufferExclusion(t *testing.T) {
	buf := Buffers{Before: 15 * time.Minute, After: 15 * time.Minute}
	booked := []Interval{{Start: at(10, 0), End: at(11, 0)}}
	q := SlotQuery{
		Windows:   simpleDay(),
		Conflicts: EffectiveConflicts(booked, nil, buf),
		Duration:  time.Hour,
		Buffers:   buf,
		Earliest:  at(0, 0),
	}
	forbidden := Interval{Start: at(9, 45), End: at(11, 15)}

	slots := Collect(Slots(q), 0)
	if len(slots) == 0 {
		t.Fatalf("expected some slots")
	}
	for _, s := range slots {
		if Overlaps(buf.Apply(s), forbidden) {
			t.Fatalf("slot %s overlaps buffered booking", s.Start.Format(time.RFC3339))
		}
	}
	// Both sides carry a 15 minute pad, so the first slot after the booking is 11:30.
	starts := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		starts = append(starts, s.Start)
	}
	if slices.ContainsFunc(starts, func(t time.Time) bool { return t.Equal(at(11, 15)) }) {
		t.Fatalf("11:15 should be excluded")
	}
	if !slices.ContainsFunc(starts, func(t time.Time) bool { return t.Equal(at(11, 30)) }) {
		t.Fatalf("11:30 should be offered")
	}
}

func TestSlots_BusyBlockRemovesOnlyIntersectingSlots(t *testing.T) {
	block := Interval{Start: at(12, 0), End: at(13, 0)}
	all := Collect(Slots(SlotQuery{Windows: simpleDay(), Duration: time.Hour, Earliest: at(0, 0)}), 0)
	got := Collect(Slots(SlotQuery{
		Windows:   simpleDay(),
		Conflicts: EffectiveConflicts(nil, []Interval{block}, Buffers{}),
		Duration:  time.Hour,
		Earliest:  at(0, 0),
	}), 0)

	var want []Interval
	for _, s := range all {
		if !Overlaps(s, block) {
			want = append(want, s)
		}
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	// 11:00-12:00 and 13:00-14:00 touch the block and stay.
	if !slices.ContainsFunc(got, func(s Interval) bool { return s.Start.Equal(at(11, 0)) }) {
		t.Fatalf("11:00 should be offered")
	}
	if !slices.ContainsFunc(got, func(s Interval) bool { return s.Start.Equal(at(13, 0)) }) {
		t.Fatalf("13:00 should be offered")
	}
}

func TestSlots_BusyBlockIsNotPadded(t *testing.T) {
	buf := Buffers{After: 15 * time.Minute}
	span := Interval{Start: at(12, 0), End: at(13, 0)}
	first := func(conflicts []Interval) time.Time {
		for s := range Slots(SlotQuery{
			Windows:   []Interval{{Start: at(13, 0), End: at(17, 0)}},
			Conflicts: conflicts,
			Duration:  time.Hour,
			Buffers:   buf,
			Earliest:  at(0, 0),
		}) {
			return s.Start
		}
		return time.Time{}
	}

	if got := first(EffectiveConflicts(nil, []Interval{span}, buf)); !got.Equal(at(13, 0)) {
		t.Fatalf("busy block: expected 13:00, got %s", got.Format(time.RFC3339))
	}
	if got := first(EffectiveConflicts([]Interval{span}, nil, buf)); !got.Equal(at(13, 15)) {
		t.Fatalf("booking: expected 13:15, got %s", got.Format(time.RFC3339))
	}
}

func TestSlots_MinimumNotice(t *testing.T) {
	now := at(9, 31)
	earliest := now.Add(2 * time.Hour)
	slots := Collect(Slots(SlotQuery{Windows: simpleDay(), Duration: time.Hour, Earliest: earliest}), 0)
	if len(slots) == 0 {
		t.Fatalf("expected slots")
	}
	for _, s := range slots {
		if s.Start.Before(earliest) {
			t.Fatalf("slot %s violates minimum notice", s.Start.Format(time.RFC3339))
		}
	}
	if !slots[0].Start.Equal(at(11, 45)) {
		t.Fatalf("expected first slot 11:45, got %s", slots[0].Start.Format(time.RFC3339))
	}
}

func TestSlots_OverlappingWindowsAreMergedInOrder(t *testing.T) {
	windows := []Interval{
		{Start: at(13, 0), End: at(15, 0)},
		{Start: at(9, 0), End: at(11, 0)},
		{Start: at(10, 0), End: at(12, 0)},
	}
	slots := Collect(Slots(SlotQuery{Windows: windows, Duration: time.Hour, Earliest: at(0, 0)}), 0)
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.After(slots[i-1].Start) {
			t.Fatalf("slots not strictly ascending at %d: %s then %s", i,
				slots[i-1].Start.Format(time.RFC3339), slots[i].Start.Format(time.RFC3339))
		}
	}
	if !slots[0].Start.Equal(at(9, 0)) {
		t.Fatalf("expected 09:00 first")
	}
	if last := slots[len(slots)-1]; !last.Start.Equal(at(14, 0)) {
		t.Fatalf("expected 14:00 last, got %s", last.Start.Format(time.RFC3339))
	}
}

func TestSlots_OffGridOverlappingWindowKeepsItsStarts(t *testing.T) {
	windows := []Interval{
		{Start: at(9, 0), End: at(17, 0)},
		{Start: at(10, 5), End: at(12, 0)},
	}
	q := SlotQuery{Windows: windows, Duration: time.Hour, Earliest: at(0, 0)}
	slots := Collect(Slots(q), 0)
	if len(slots) != 33 {
		t.Fatalf("expected 29 on-grid plus 4 off-grid slots, got %d", len(slots))
	}
	seen := map[time.Time]bool{}
	for i, sl := range slots {
		if seen[sl.Start] {
			t.Fatalf("duplicate start %s", sl.Start.Format(time.RFC3339))
		}
		seen[sl.Start] = true
		if i > 0 && !sl.Start.After(slots[i-1].Start) {
			t.Fatalf("slots not strictly ascending at %d", i)
		}
	}
	for _, want := range []time.Time{at(10, 5), at(10, 20), at(10, 35), at(10, 50)} {
		if !seen[want] {
			t.Fatalf("missing off-grid start %s", want.Format(time.RFC3339))
		}
		candidate := Interval{Start: want, End: want.Add(time.Hour)}
		if !WithinAny(candidate, windows) {
			t.Fatalf("listed slot %s would be rejected at commit", want.Format(time.RFC3339))
		}
	}
	if seen[at(11, 5)] {
		t.Fatalf("11:05 does not fit its window")
	}
}

func TestSlots_Idempotent(t *testing.T) {
	q := SlotQuery{
		Windows:   simpleDay(),
		Conflicts: []Interval{{Start: at(10, 0), End: at(10, 30)}},
		Duration:  45 * time.Minute,
		Buffers:   Buffers{Before: 5 * time.Minute, After: 10 * time.Minute},
		Earliest:  at(8, 0),
	}
	a := Collect(Slots(q), 0)
	b := Collect(Slots(q), 0)
	if !slices.Equal(a, b) {
		t.Fatalf("two runs differ: %d vs %d slots", len(a), len(b))
	}
}

func TestSlots_StopsEarly(t *testing.T) {
	got := Collect(Slots(SlotQuery{Windows: simpleDay(), Duration: time.Hour, Earliest: at(0, 0)}), 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
}

func TestSlots_DurationLongerThanWindow(t *testing.T) {
	got := Collect(Slots(SlotQuery{
		Windows:  []Interval{{Start: at(9, 0), End: at(9, 30)}},
		Duration: time.Hour,
		Earliest: at(0, 0),
	}), 0)
	if len(got) != 0 {
		t.Fatalf("expected no slots, got %d", len(got))
	}
}

func TestCheckCandidate(t *testing.T) {
	conflicts := []Interval{{Start: at(10, 0), End: at(11, 0)}}
	cases := []struct {
		name      string
		candidate Interval
		buf       Buffers
		earliest  time.Time
		want      error
	}{
		{"clear", Interval{Start: at(11, 0), End: at(12, 0)}, Buffers{}, at(0, 0), nil},
		{"too soon", Interval{Start: at(11, 0), End: at(12, 0)}, Buffers{}, at(11, 1), ErrTooSoon},
		{"overlap", Interval{Start: at(10, 30), End: at(11, 30)}, Buffers{}, at(0, 0), ErrConflict},
		{"own buffer hits", Interval{Start: at(11, 0), End: at(12, 0)}, Buffers{Before: time.Minute}, at(0, 0), ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckCandidate(tc.candidate, conflicts, tc.buf, tc.earliest); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
