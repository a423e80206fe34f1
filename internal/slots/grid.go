package slots

// Status classifies an hourly slot of the daily agenda.
type Status string

const (
	StatusFree    Status = "free"
	StatusBooked  Status = "booked"
	StatusBlocked Status = "blocked"
)

// GridSlot is one row of the read-only daily agenda.
type GridSlot struct {
	Time   string `json:"time"`
	Status Status `json:"status"`
}

// Last hourly row shown by the agenda grid.
const lastGridMinute = 20 * 60

// DailyGrid classifies every hour from 08:00 through 20:00. A slot that
// overlaps a booking is booked even when the day is blocked, so existing
// appointments stay visible.
func DailyGrid(day Day) []GridSlot {
	blocked := DayBlocked(day)
	booked := bookingIntervals(day.Bookings)
	blocks := blockIntervals(day.Blocks)

	grid := make([]GridSlot, 0, (lastGridMinute-OpenMinute)/60+1)
	for m := OpenMinute; m <= lastGridMinute; m += 60 {
		slot := Interval{Start: m, End: m + 60}
		st := StatusFree
		switch {
		case overlapsAny(slot, booked):
			st = StatusBooked
		case blocked || overlapsAny(slot, blocks):
			st = StatusBlocked
		}
		grid = append(grid, GridSlot{Time: FormatHHMM(m), Status: st})
	}
	return grid
}

// HalfHourGaps lists the free half hours left inside hourly slots that are only
// partly taken by bookings. They are annotations for the agenda display and are
// never offered by Available for hour-long appointments.
func HalfHourGaps(day Day) []string {
	gaps := []string{}
	if DayBlocked(day) {
		return gaps
	}
	booked := bookingIntervals(day.Bookings)
	blocks := blockIntervals(day.Blocks)

	for m := OpenMinute; m <= lastGridMinute; m += 60 {
		hour := Interval{Start: m, End: m + 60}
		if !overlapsAny(hour, booked) {
			continue
		}
		for _, half := range []Interval{{m, m + 30}, {m + 30, m + 60}} {
			if overlapsAny(half, booked) || overlapsAny(half, blocks) {
				continue
			}
			gaps = append(gaps, FormatHHMM(half.Start))
		}
	}
	return gaps
}
