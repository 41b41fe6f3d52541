// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package temporal converts natural-language time phrases into concrete
// search windows. Fixed idioms ("this weekend", "tonight") are matched
// before delegating to a general future-biased date parser, and a phrase
// that resolves to nothing yields a clarification request rather than an
// error.
package temporal

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// Result is the outcome of resolving one phrase. When NeedsClarification
// is set, Start/End are zero and Question carries a user-facing follow-up.
type Result struct {
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
	Explanation string    `json:"explanation,omitempty"`

	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	Question           string `json:"question,omitempty"`

	// Phrase echoes the input for transparency.
	Phrase string `json:"phrase"`
}

// Resolver resolves phrases relative to a fixed timezone. It is stateless
// and safe for concurrent use.
type Resolver struct {
	loc *time.Location
}

// New creates a Resolver for the given location. A nil location means UTC.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var nextWeekdayRe = regexp.MustCompile(`next\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)`)

// Resolve converts a phrase into a concrete window relative to ref.
// It never returns an error: unresolvable phrases produce a Result with
// NeedsClarification set.
func (r *Resolver) Resolve(phrase string, ref time.Time) Result {
	ref = ref.In(r.loc)
	p := strings.ToLower(strings.TrimSpace(phrase))

	switch {
	case strings.Contains(p, "weekend"):
		return r.weekend(phrase, ref)
	case strings.Contains(p, "tomorrow night"):
		return r.tomorrowNight(phrase, ref)
	case strings.Contains(p, "tonight"), strings.Contains(p, "this evening"):
		return r.tonight(phrase, ref)
	}

	if m := nextWeekdayRe.FindStringSubmatch(p); m != nil {
		return r.nextWeekday(phrase, ref, weekdayNames[m[1]])
	}

	return r.fallback(phrase, ref)
}

// weekend resolves to Friday 16:00 through Sunday 23:59:59 of the upcoming
// weekend. A reference on Friday past 16:00 rolls to the following week.
func (r *Resolver) weekend(phrase string, ref time.Time) Result {
	days := int((time.Friday - ref.Weekday() + 7) % 7)
	if days == 0 && ref.Hour() >= 16 {
		days = 7
	}

	friday := ref.AddDate(0, 0, days)
	start := time.Date(friday.Year(), friday.Month(), friday.Day(), 16, 0, 0, 0, r.loc)
	sunday := start.AddDate(0, 0, 2)
	end := time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, r.loc)

	return Result{
		Start:       start,
		End:         end,
		Explanation: fmt.Sprintf("this weekend: Friday %s 16:00 through Sunday %s", start.Format("Jan 2"), end.Format("Jan 2")),
		Phrase:      phrase,
	}
}

// tonight resolves to max(ref, 18:00 today) through end of today.
func (r *Resolver) tonight(phrase string, ref time.Time) Result {
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 18, 0, 0, 0, r.loc)
	if ref.After(start) {
		start = ref
	}
	end := time.Date(ref.Year(), ref.Month(), ref.Day(), 23, 59, 59, 0, r.loc)

	return Result{
		Start:       start,
		End:         end,
		Explanation: fmt.Sprintf("tonight: %s until midnight", start.Format("Jan 2 15:04")),
		Phrase:      phrase,
	}
}

// tomorrowNight resolves to tomorrow 18:00 through end of tomorrow.
func (r *Resolver) tomorrowNight(phrase string, ref time.Time) Result {
	tomorrow := ref.AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 18, 0, 0, 0, r.loc)
	end := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 23, 59, 59, 0, r.loc)

	return Result{
		Start:       start,
		End:         end,
		Explanation: fmt.Sprintf("tomorrow night: %s 18:00 until midnight", start.Format("Jan 2")),
		Phrase:      phrase,
	}
}

// nextWeekday resolves "next <weekday>" to that weekday in the FOLLOWING
// week - this week's occurrence is always skipped, even when it has not
// happened yet. "Next Friday" said on a Wednesday therefore means nine
// days out, not two. Counter-intuitive but deliberate; see the package
// tests before changing this.
func (r *Resolver) nextWeekday(phrase string, ref time.Time, target time.Weekday) Result {
	// Monday-indexed weekday positions so the week boundary is Sunday/Monday.
	curIdx := (int(ref.Weekday()) + 6) % 7
	targetIdx := (int(target) + 6) % 7
	days := targetIdx - curIdx + 7

	day := ref.AddDate(0, 0, days)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, r.loc)

	return Result{
		Start:       start,
		End:         end,
		Explanation: fmt.Sprintf("next %s: all day %s", strings.ToLower(target.String()), start.Format("Jan 2")),
		Phrase:      phrase,
	}
}

// fallback delegates to the general natural-language parser, biased to
// future dates, and widens the single parsed instant into a window.
func (r *Resolver) fallback(phrase string, ref time.Time) Result {
	parsed, err := naturaldate.Parse(phrase, ref, naturaldate.WithDirection(naturaldate.Future))
	if err != nil || parsed.Equal(ref) {
		// The parser returns ref unchanged for input it cannot interpret.
		return Result{
			NeedsClarification: true,
			Question:           fmt.Sprintf("I couldn't work out when %q is - could you give me a date or something like \"this weekend\"?", phrase),
			Phrase:             phrase,
		}
	}

	parsed = parsed.In(r.loc)
	end := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, r.loc)

	start := parsed
	if parsed.Hour() == 0 && parsed.Minute() == 0 && parsed.Second() == 0 {
		// Date-only phrase: cover the whole day.
		start = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, r.loc)
	}

	return Result{
		Start:       start,
		End:         end,
		Explanation: fmt.Sprintf("%s through end of day", start.Format("Mon Jan 2 15:04")),
		Phrase:      phrase,
	}
}
