package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/slots"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

type dayTotals struct {
	Count int `json:"count"`
	Paid  int `json:"paid"`
}

func totalsOf(appts []store.Appointment) dayTotals {
	t := dayTotals{Count: len(appts)}
	for _, ap := range appts {
		if ap.Paid {
			t.Paid++
		}
	}
	return t
}

// GET /api/agenda/day?date=YYYY-MM-DD
func (a *App) DayAgendaHandler(c *gin.Context) {
	day, err := a.dateParam(c, "date")
	if err != nil {
		a.respondError(c, err)
		return
	}
	dd, err := a.LoadDay(c.Request.Context(), day)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":             day.Format(dates.Layout),
		"weekend":          slots.IsWeekend(day),
		"weekend_override": dd.Day.WeekendOverride,
		"day_blocked":      slots.DayBlocked(dd.Day),
		"appointments":     dd.Appointments,
		"blocks":           dd.Blocks,
		"external_busy":    dd.External,
		"totals":           totalsOf(dd.Appointments),
		"grid":             slots.DailyGrid(dd.Day),
		"half_hour_gaps":   slots.HalfHourGaps(dd.Day),
	})
}

type weekDay struct {
	Date         string              `json:"date"`
	Weekday      string              `json:"weekday"`
	Blocked      bool                `json:"blocked"`
	FreeSlots    int                 `json:"free_slots"`
	Totals       dayTotals           `json:"totals"`
	Appointments []store.Appointment `json:"appointments"`
}

// GET /api/agenda/week?date=YYYY-MM-DD
func (a *App) WeekAgendaHandler(c *gin.Context) {
	day, err := a.dateParam(c, "date")
	if err != nil {
		a.respondError(c, err)
		return
	}
	week := dates.Week(day)
	days, err := a.LoadDays(c.Request.Context(), week)
	if err != nil {
		a.respondError(c, err)
		return
	}
	out := make([]weekDay, len(days))
	for i, dd := range days {
		out[i] = weekDay{
			Date:         dd.Day.Date.Format(dates.Layout),
			Weekday:      dd.Day.Date.Weekday().String(),
			Blocked:      slots.DayBlocked(dd.Day),
			FreeSlots:    len(slots.Available(dd.Day, slots.DefaultDuration)),
			Totals:       totalsOf(dd.Appointments),
			Appointments: dd.Appointments,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"from": week[0].Format(dates.Layout),
		"to":   week[len(week)-1].Format(dates.Layout),
		"days": out,
	})
}
