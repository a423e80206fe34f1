package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operating window in minutes from midnight.
const (
	OpenMinute      = 8 * 60
	CloseMinute     = 21 * 60
	DefaultDuration = 60
)

// Durations accepted for new appointments.
var Durations = []int{30, 60, 120}

// Booking is an already confirmed appointment on the day being computed.
type Booking struct {
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// Block is a staff-created exclusion. With both bounds empty it blocks the whole day.
type Block struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

func (b Block) WholeDay() bool {
	return b.Start == "" && b.End == ""
}

// Day is everything the calculator needs about one calendar date.
type Day struct {
	Date            time.Time
	Bookings        []Booking
	Blocks          []Block
	WeekendOverride bool
}

// Interval is a half-open [Start, End) range in minutes from midnight.
type Interval struct {
	Start int
	End   int
}

func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// ValidDuration reports whether d is one of the supported appointment lengths.
func ValidDuration(d int) bool {
	for _, v := range Durations {
		if v == d {
			return true
		}
	}
	return false
}

// IsWeekend reports whether date falls on Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// DayBlocked reports whether the whole date is unavailable, either through a
// whole-day block or through the default weekend policy.
func DayBlocked(day Day) bool {
	for _, b := range day.Blocks {
		if b.WholeDay() {
			return true
		}
	}
	return IsWeekend(day.Date) && !day.WeekendOverride
}

// Available returns the start times, ascending and formatted "HH:MM", at which
// an appointment of durationMinutes fits without overlapping any booking or
// partial block of the day. A zero duration means the default of 60 minutes.
func Available(day Day, durationMinutes int) []string {
	if durationMinutes <= 0 {
		durationMinutes = DefaultDuration
	}
	free := []string{}
	if DayBlocked(day) {
		return free
	}

	busy := BusyIntervals(day)
	for _, start := range candidates(durationMinutes) {
		slot := Interval{Start: start, End: start + durationMinutes}
		if slot.End > CloseMinute {
			continue
		}
		if overlapsAny(slot, busy) {
			continue
		}
		free = append(free, FormatHHMM(start))
	}
	return free
}

// BusyIntervals converts the bookings and partial blocks of day into intervals.
// Entries whose times do not parse are skipped.
func BusyIntervals(day Day) []Interval {
	out := make([]Interval, 0, len(day.Bookings)+len(day.Blocks))
	out = append(out, bookingIntervals(day.Bookings)...)
	out = append(out, blockIntervals(day.Blocks)...)
	return out
}

func bookingIntervals(bookings []Booking) []Interval {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		iv, ok := b.Interval()
		if !ok {
			continue
		}
		out = append(out, iv)
	}
	return out
}

func blockIntervals(blocks []Block) []Interval {
	out := make([]Interval, 0, len(blocks))
	for _, b := range blocks {
		if b.Start == "" || b.End == "" {
			continue
		}
		start, err := ParseHHMM(b.Start)
		if err != nil {
			continue
		}
		end, err := ParseHHMM(b.End)
		if err != nil {
			continue
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out
}

// Interval returns the booking's range, defaulting the duration to 60 minutes.
func (b Booking) Interval() (Interval, bool) {
	start, err := ParseHHMM(b.Start)
	if err != nil {
		return Interval{}, false
	}
	d := b.DurationMinutes
	if d <= 0 {
		d = DefaultDuration
	}
	return Interval{Start: start, End: start + d}, true
}

// Conflicts reports whether candidate overlaps any of the existing bookings.
func Conflicts(existing []Booking, candidate Booking) bool {
	iv, ok := candidate.Interval()
	if !ok {
		return false
	}
	return overlapsAny(iv, bookingIntervals(existing))
}

// KeepSelection returns selected when it is still one of the free start times,
// and "" otherwise.
func KeepSelection(selected string, free []string) string {
	for _, f := range free {
		if f == selected {
			return selected
		}
	}
	return ""
}

func candidates(durationMinutes int) []int {
	step := 60
	if durationMinutes%60 != 0 {
		step = 30
	}
	out := make([]int, 0, (CloseMinute-OpenMinute)/step)
	for m := OpenMinute; m+durationMinutes <= CloseMinute; m += step {
		out = append(out, m)
	}
	return out
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// ParseHHMM parses "HH:MM" (anything after the minutes, like ":SS", is ignored)
// into minutes from midnight. "24:00" is accepted as the end of the day.
func ParseHHMM(s string) (int, error) {
	if len(s) < 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if rest := s[5:]; rest != "" && !strings.HasPrefix(rest, ":") {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return h*60 + m, nil
}

// FormatHHMM formats minutes from midnight as zero-padded "HH:MM".
func FormatHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
