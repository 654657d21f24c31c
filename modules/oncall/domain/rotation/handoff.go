package rotation

import (
	"time"

	"github.com/opsdesk-io/opsdesk/pkg/serrors"
)

type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindBiWeekly Kind = "bi_weekly"
	KindCustom   Kind = "custom"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindDaily, KindWeekly, KindBiWeekly, KindCustom:
		return true
	}
	return false
}

// usesWeekday reports whether the handoff weekday participates in the
// calculation. Daily and custom rotations hand off at the configured
// time of day regardless of weekday.
func (k Kind) usesWeekday() bool {
	return k == KindWeekly || k == KindBiWeekly
}

func (k Kind) periodDays(customLength int) int {
	switch k {
	case KindDaily:
		return 1
	case KindWeekly:
		return 7
	case KindBiWeekly:
		return 14
	default:
		return customLength
	}
}

// Settings is the rotation cadence of a schedule, detached from the
// aggregate so the calculator stays a pure function.
type Settings struct {
	Timezone       string
	Kind           Kind
	LengthDays     int    // custom rotations only
	HandoffTime    string // "HH:MM" local wall clock
	HandoffWeekday time.Weekday
	Epoch          time.Time // first handoff reference instant
}

var (
	ErrUnknownTimezone   = serrors.Validation("ONCALL_UNKNOWN_TIMEZONE", "schedule timezone is not a known IANA zone")
	ErrMalformedHandoff  = serrors.Validation("ONCALL_MALFORMED_HANDOFF", "handoff time must be HH:MM")
	ErrBadRotationLength = serrors.Validation("ONCALL_BAD_ROTATION_LENGTH", "custom rotation length must be positive")
	ErrUnknownRotation   = serrors.Validation("ONCALL_UNKNOWN_ROTATION", "unknown rotation type")
)

// NextHandoff returns the first handoff instant strictly after from.
//
// The configured handoff time is a local wall-clock commitment: the
// calculation projects from into the schedule's zone, pins the wall-clock
// hour and minute (and weekday for weekly cadences), and re-derives the
// absolute instant from those fields. Walking wall-clock dates instead of
// adding UTC hours keeps a 09:00 local handoff at 09:00 local across DST
// transitions.
//
// Nonexistent local times (spring-forward gap) round forward to the
// instant the clocks jump to. Repeated local times (fall-back) resolve to
// the earliest occurrence.
func NextHandoff(s Settings, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Time{}, ErrUnknownTimezone
	}
	hour, minute, err := parseHandoffTime(s.HandoffTime)
	if err != nil {
		return time.Time{}, err
	}
	if !s.Kind.IsValid() {
		return time.Time{}, ErrUnknownRotation
	}
	period := s.Kind.periodDays(s.LengthDays)
	if period <= 0 {
		return time.Time{}, ErrBadRotationLength
	}

	local := from.In(loc)
	candidate := wallClock(local.Year(), int(local.Month()), local.Day(), hour, minute, loc)
	if s.Kind.usesWeekday() {
		for candidate.Weekday() != s.HandoffWeekday {
			candidate = addDays(candidate, 1, hour, minute, loc)
		}
	}
	for !candidate.After(from) {
		candidate = addDays(candidate, period, hour, minute, loc)
	}
	return candidate, nil
}

// wallClock builds the instant for a local wall-clock reading.
// time.Date already normalizes a nonexistent reading forward past the
// gap; a repeated reading maps to the earlier offset. Readings pushed
// backwards by gap normalization are bumped to the post-transition
// instant so the result never precedes the requested wall clock.
func wallClock(year, month, day, hour, minute int, loc *time.Location) time.Time {
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Hour()*60+t.Minute() < hour*60+minute && t.Day() == day {
		t = t.Add(time.Duration((hour*60+minute)-(t.Hour()*60+t.Minute())) * time.Minute)
	}
	return t
}

// addDays advances by calendar days in loc and re-pins the handoff
// wall-clock time, so a period spanning a DST shift stays at the
// configured local time instead of drifting by the offset change.
func addDays(t time.Time, days, hour, minute int, loc *time.Location) time.Time {
	shifted := t.In(loc).AddDate(0, 0, days)
	return wallClock(shifted.Year(), int(shifted.Month()), shifted.Day(), hour, minute, loc)
}

func parseHandoffTime(v string) (hour, minute int, err error) {
	parsed, pErr := time.Parse("15:04", v)
	if pErr != nil {
		return 0, 0, ErrMalformedHandoff
	}
	return parsed.Hour(), parsed.Minute(), nil
}
