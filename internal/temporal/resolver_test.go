// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package temporal

import (
	"testing"
	"time"
)

// Wednesday, March 4 2026, 10:00 UTC.
var wednesday = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func TestWeekendFromWednesday(t *testing.T) {
	r := New(time.UTC)
	res := r.Resolve("this weekend", wednesday)

	if res.NeedsClarification {
		t.Fatalf("unexpected clarification: %q", res.Question)
	}

	wantStart := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC) // Friday 16:00
	wantEnd := time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC) // Sunday
	if !res.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", res.Start, wantStart)
	}
	if !res.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", res.End, wantEnd)
	}
	if res.Explanation == "" {
		t.Error("explanation must not be empty")
	}
}

func TestWeekendVariants(t *testing.T) {
	r := New(time.UTC)
	for _, phrase := range []string{"this weekend", "the weekend", "weekend", "What's on This Weekend?"} {
		res := r.Resolve(phrase, wednesday)
		if res.Start.Weekday() != time.Friday {
			t.Errorf("%q: start weekday = %v, want Friday", phrase, res.Start.Weekday())
		}
	}
}

func TestWeekendFridayEveningRollsForward(t *testing.T) {
	r := New(time.UTC)
	fridayEvening := time.Date(2026, 3, 6, 17, 30, 0, 0, time.UTC)
	res := r.Resolve("this weekend", fridayEvening)

	wantStart := time.Date(2026, 3, 13, 16, 0, 0, 0, time.UTC)
	if !res.Start.Equal(wantStart) {
		t.Errorf("Friday evening should roll to next weekend: start = %v, want %v", res.Start, wantStart)
	}
}

func TestWeekendFridayAfternoonStaysCurrent(t *testing.T) {
	r := New(time.UTC)
	fridayNoon := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	res := r.Resolve("this weekend", fridayNoon)

	wantStart := time.Date(2026, 3, 6, 16, 0, 0, 0, time.UTC)
	if !res.Start.Equal(wantStart) {
		t.Errorf("Friday before 16:00 keeps current weekend: start = %v, want %v", res.Start, wantStart)
	}
}

func TestTonight(t *testing.T) {
	r := New(time.UTC)

	morning := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	res := r.Resolve("tonight", morning)
	wantStart := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	if !res.Start.Equal(wantStart) {
		t.Errorf("morning ref: start = %v, want 18:00", res.Start)
	}

	// Past 18:00 the window starts at the reference instant, not in the past.
	late := time.Date(2026, 3, 4, 20, 30, 0, 0, time.UTC)
	res = r.Resolve("tonight", late)
	if !res.Start.Equal(late) {
		t.Errorf("late ref: start = %v, want %v", res.Start, late)
	}

	wantEnd := time.Date(2026, 3, 4, 23, 59, 59, 0, time.UTC)
	if !res.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", res.End, wantEnd)
	}
}

func TestThisEvening(t *testing.T) {
	r := New(time.UTC)
	res := r.Resolve("free things this evening", wednesday)
	if res.Start.Hour() != 18 || res.Start.Day() != 4 {
		t.Errorf("this evening: start = %v", res.Start)
	}
}

func TestTomorrowNight(t *testing.T) {
	r := New(time.UTC)
	res := r.Resolve("tomorrow night", wednesday)

	wantStart := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 5, 23, 59, 59, 0, time.UTC)
	if !res.Start.Equal(wantStart) || !res.End.Equal(wantEnd) {
		t.Errorf("tomorrow night = [%v, %v], want [%v, %v]", res.Start, res.End, wantStart, wantEnd)
	}
}

// "Next <weekday>" always lands in the FOLLOWING week, even when the day
// is still ahead in the current week. This mirrors the behavior users of
// the original deployment rely on; it is deliberately not "nearest future
// occurrence". Do not "fix" without changing the documented contract.
func TestNextWeekdayAlwaysSkipsCurrentWeek(t *testing.T) {
	r := New(time.UTC)

	tests := []struct {
		phrase string
		want   time.Time
	}{
		// Friday is 2 days out, yet "next friday" means 9 days out.
		{"next friday", time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)},
		// Wednesday today: "next wednesday" is in 7 days.
		{"next wednesday", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
		// Monday already passed this week: next week's Monday.
		{"next monday", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			res := r.Resolve(tt.phrase, wednesday)
			if !res.Start.Equal(tt.want) {
				t.Errorf("start = %v, want %v", res.Start, tt.want)
			}
			if res.End.Day() != tt.want.Day() || res.End.Hour() != 23 {
				t.Errorf("end = %v, want end of same day", res.End)
			}
		})
	}
}

func TestFallbackParser(t *testing.T) {
	r := New(time.UTC)
	res := r.Resolve("in 3 days", wednesday)

	if res.NeedsClarification {
		t.Fatalf("parser should handle relative phrases: %q", res.Question)
	}
	if res.Start.Day() != 7 {
		t.Errorf("in 3 days: start = %v, want March 7", res.Start)
	}
}

func TestUnresolvablePhraseAsksForClarification(t *testing.T) {
	r := New(time.UTC)
	res := r.Resolve("whenever the vibe is right", wednesday)

	if !res.NeedsClarification {
		t.Fatalf("expected clarification, got window [%v, %v]", res.Start, res.End)
	}
	if res.Question == "" {
		t.Error("clarification must carry a question")
	}
	if res.Phrase != "whenever the vibe is right" {
		t.Errorf("original phrase not preserved: %q", res.Phrase)
	}
}

func TestResolveHonorsTimezone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	r := New(berlin)

	// 23:30 UTC on Wednesday is already Thursday in Berlin.
	lateUTC := time.Date(2026, 3, 4, 23, 30, 0, 0, time.UTC)
	res := r.Resolve("tonight", lateUTC)

	if res.Start.Day() != 5 {
		t.Errorf("tonight in Berlin should be Thursday the 5th, got %v", res.Start)
	}
}
