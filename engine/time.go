package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// CLOCK TIME - Point on a 24h clock, independent of date
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

func NewClockTime(hour, minute int) ClockTime {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return ClockTime{Hour: hour, Minute: minute}
}

func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseClockTime reads "HH:MM". Malformed text coerces to midnight.
func ParseClockTime(s string) ClockTime {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return ClockTime{}
	}
	return NewClockTime(h, m)
}

func (c ClockTime) MinuteOfDay() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// =============================================================================
// CLOCK INTERVALS AND WINDOWS - Possibly wrapping past midnight
// =============================================================================

const minutesPerDay = 24 * 60

// ClockInterval is a worked interval expressed as clock times. When End is
// at or before Start the interval wraps past midnight.
type ClockInterval struct {
	Start ClockTime
	End   ClockTime
}

// segments splits the interval into non-wrapping [from, to) minute ranges.
func (ci ClockInterval) segments() [][2]int {
	s, e := ci.Start.MinuteOfDay(), ci.End.MinuteOfDay()
	if s == e {
		return nil
	}
	if s < e {
		return [][2]int{{s, e}}
	}
	return [][2]int{{s, minutesPerDay}, {0, e}}
}

// ClockWindow is a configured clock range [Start, End); it wraps past
// midnight when End is at or before Start (e.g. 22:00-06:00).
type ClockWindow struct {
	Start ClockTime
	End   ClockTime
}

func (w ClockWindow) segments() [][2]int {
	return ClockInterval{Start: w.Start, End: w.End}.segments()
}

// OverlapMinutes returns how many minutes of the interval fall inside the
// window. Both sides may wrap, so overlap is summed pairwise across the
// non-wrapping segments of each.
func (w ClockWindow) OverlapMinutes(ci ClockInterval) int {
	total := 0
	for _, ws := range w.segments() {
		for _, is := range ci.segments() {
			lo := max(ws[0], is[0])
			hi := min(ws[1], is[1])
			if hi > lo {
				total += hi - lo
			}
		}
	}
	return total
}

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// DateOf truncates a timestamp to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same calendar day.
func SameDate(a, b time.Time) bool { return DateOf(a).Equal(DateOf(b)) }

// WeekStart returns the first day of the pay-period week containing date.
func WeekStart(date time.Time, startsOn time.Weekday) time.Time {
	d := DateOf(date)
	offset := (int(d.Weekday()) - int(startsOn) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekDays returns the seven days of the week containing date, in order.
func WeekDays(date time.Time, startsOn time.Weekday) []time.Time {
	start := WeekStart(date, startsOn)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
