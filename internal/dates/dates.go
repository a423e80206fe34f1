// Package dates holds the calendar-date helpers shared by the agenda and the
// patient records. Dates travel as "YYYY-MM-DD" strings and are interpreted as
// local calendar days, never as instants.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Layout = "2006-01-02"

// YMD is a calendar date split into its parts.
type YMD struct {
	Year  int
	Month int
	Day   int
}

// SplitISO extracts year, month and day from "YYYY-MM-DD", ignoring any time
// part after a "T". ok is false when any part is missing or zero.
func SplitISO(iso string) (YMD, bool) {
	if iso == "" {
		return YMD{}, false
	}
	base, _, _ := strings.Cut(iso, "T")
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return YMD{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v == 0 {
			return YMD{}, false
		}
		n[i] = v
	}
	return YMD{Year: n[0], Month: n[1], Day: n[2]}, true
}

// FormatBR renders an ISO date as "dd/mm/yyyy", or "" when it does not parse.
func FormatBR(iso string) string {
	p, ok := SplitISO(iso)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d/%02d/%d", p.Day, p.Month, p.Year)
}

// AgeFromISO returns the age in whole years on today. Future birth dates give 0.
func AgeFromISO(iso string, today time.Time) (int, bool) {
	p, ok := SplitISO(iso)
	if !ok {
		return 0, false
	}
	age := today.Year() - p.Year
	if int(today.Month()) < p.Month || (int(today.Month()) == p.Month && today.Day() < p.Day) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}

// Parse strictly parses "YYYY-MM-DD" as a date in loc.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Week returns the Monday through Sunday dates of the week containing day.
func Week(day time.Time) []time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	out := make([]time.Time, 7)
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}

// Today returns the current calendar date in loc as "YYYY-MM-DD".
func Today(loc *time.Location) string {
	return time.Now().In(loc).Format(Layout)
}
