package slots

import (
	"reflect"
	"testing"
)

func statusAt(grid []GridSlot, hhmm string) Status {
	for _, g := range grid {
		if g.Time == hhmm {
			return g.Status
		}
	}
	return ""
}

func TestDailyGrid(t *testing.T) {
	day := Day{
		Date:     tuesday,
		Bookings: []Booking{{Start: "09:00"}, {Start: "14:30", DurationMinutes: 30}},
		Blocks:   []Block{{Start: "17:00", End: "19:00"}},
	}
	grid := DailyGrid(day)
	if len(grid) != 13 {
		t.Fatalf("expected 13 hourly rows, got %d", len(grid))
	}
	if grid[0].Time != "08:00" || grid[12].Time != "20:00" {
		t.Errorf("grid bounds wrong: %s..%s", grid[0].Time, grid[12].Time)
	}
	want := map[string]Status{
		"08:00": StatusFree,
		"09:00": StatusBooked,
		"14:00": StatusBooked,
		"17:00": StatusBlocked,
		"18:00": StatusBlocked,
		"19:00": StatusFree,
	}
	for hhmm, st := range want {
		if got := statusAt(grid, hhmm); got != st {
			t.Errorf("%s: got %s, want %s", hhmm, got, st)
		}
	}
}

func TestDailyGrid_BlockedDayKeepsBookings(t *testing.T) {
	day := Day{Date: tuesday, Bookings: []Booking{{Start: "10:00"}}, Blocks: []Block{{}}}
	grid := DailyGrid(day)
	for _, g := range grid {
		want := StatusBlocked
		if g.Time == "10:00" {
			want = StatusBooked
		}
		if g.Status != want {
			t.Errorf("%s: got %s, want %s", g.Time, g.Status, want)
		}
	}
}

func TestDailyGrid_Weekend(t *testing.T) {
	for _, g := range DailyGrid(Day{Date: sunday}) {
		if g.Status != StatusBlocked {
			t.Fatalf("%s should be blocked on sunday", g.Time)
		}
	}
	for _, g := range DailyGrid(Day{Date: sunday, WeekendOverride: true}) {
		if g.Status != StatusFree {
			t.Fatalf("%s should be free with override", g.Time)
		}
	}
}

func TestHalfHourGaps(t *testing.T) {
	day := Day{
		Date: tuesday,
		Bookings: []Booking{
			{Start: "09:00", DurationMinutes: 30},
			{Start: "11:30", DurationMinutes: 30},
			{Start: "13:00", DurationMinutes: 60},
			{Start: "15:00", DurationMinutes: 30},
		},
		Blocks: []Block{{Start: "15:30", End: "16:00"}},
	}
	got := HalfHourGaps(day)
	want := []string{"09:30", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestHalfHourGaps_BlockedDay(t *testing.T) {
	day := Day{Date: saturday, Bookings: []Booking{{Start: "09:00", DurationMinutes: 30}}}
	if got := HalfHourGaps(day); len(got) != 0 {
		t.Errorf("expected no gaps on a blocked day, got %v", got)
	}
}
