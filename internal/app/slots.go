package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/slots"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// BusySource reports external busy time for a date as partial or whole-day blocks.
type BusySource interface {
	BusyBlocks(ctx context.Context, date time.Time) ([]slots.Block, error)
}

// DayData is the per-date context handed to the calculator, plus the rows it
// was built from.
type DayData struct {
	Day          slots.Day
	Appointments []store.Appointment
	Blocks       []store.Block
	External     []slots.Block
}

// LoadDays builds the day context for each of days, which must be ascending.
// External busy-time failures are logged and the day is computed without them.
func (a *App) LoadDays(ctx context.Context, days []time.Time) ([]DayData, error) {
	if len(days) == 0 {
		return nil, nil
	}
	from := days[0].Format(dates.Layout)
	to := days[len(days)-1].Format(dates.Layout)

	appts, err := a.Store.ListAppointments(ctx, store.AppointmentFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	blocks, err := a.Store.ListBlocks(ctx, from, to)
	if err != nil {
		return nil, err
	}
	overrides, err := a.Store.WeekendOverrides(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*DayData, len(days))
	out := make([]DayData, len(days))
	for i, d := range days {
		out[i] = DayData{
			Day:          slots.Day{Date: d, WeekendOverride: overrides[d.Format(dates.Layout)]},
			Appointments: []store.Appointment{},
			Blocks:       []store.Block{},
		}
		byDate[d.Format(dates.Layout)] = &out[i]
	}
	for _, ap := range appts {
		if dd, ok := byDate[ap.Date]; ok {
			dd.Appointments = append(dd.Appointments, ap)
			dd.Day.Bookings = append(dd.Day.Bookings, slots.Booking{Start: ap.Time, DurationMinutes: ap.DurationMinutes})
		}
	}
	for _, b := range blocks {
		if dd, ok := byDate[b.Date]; ok {
			dd.Blocks = append(dd.Blocks, b)
			dd.Day.Blocks = append(dd.Day.Blocks, slots.Block{Start: b.Start, End: b.End})
		}
	}

	if a.Busy != nil {
		for i := range out {
			ext, err := a.Busy.BusyBlocks(ctx, out[i].Day.Date)
			if err != nil {
				a.Logger.Warn("external calendar unavailable",
					zap.String("date", out[i].Day.Date.Format(dates.Layout)), zap.Error(err))
				continue
			}
			out[i].External = ext
			out[i].Day.Blocks = append(out[i].Day.Blocks, ext...)
		}
	}
	return out, nil
}

// LoadDay is LoadDays for a single date.
func (a *App) LoadDay(ctx context.Context, day time.Time) (DayData, error) {
	days, err := a.LoadDays(ctx, []time.Time{day})
	if err != nil {
		return DayData{}, err
	}
	return days[0], nil
}

// dateParam parses a required YYYY-MM-DD query parameter in the clinic time zone.
func (a *App) dateParam(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, invalid(name + " is required (YYYY-MM-DD)")
	}
	d, err := dates.Parse(v, a.loc())
	if err != nil {
		return time.Time{}, invalid(err.Error())
	}
	return d, nil
}

func durationParam(c *gin.Context) (int, error) {
	v := c.Query("duration")
	if v == "" {
		return slots.DefaultDuration, nil
	}
	d, err := strconv.Atoi(v)
	if err != nil || !slots.ValidDuration(d) {
		return 0, invalid("duration must be 30, 60 or 120")
	}
	return d, nil
}

// GET /api/slots?date=YYYY-MM-DD&duration=60&selected=HH:MM
func (a *App) GetSlotsHandler(c *gin.Context) {
	day, err := a.dateParam(c, "date")
	if err != nil {
		a.respondError(c, err)
		return
	}
	duration, err := durationParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}

	dd, err := a.LoadDay(c.Request.Context(), day)
	if err != nil {
		a.respondError(c, err)
		return
	}

	free := slots.Available(dd.Day, duration)
	resp := gin.H{
		"date":             day.Format(dates.Layout),
		"duration_minutes": duration,
		"weekend":          slots.IsWeekend(day),
		"weekend_override": dd.Day.WeekendOverride,
		"day_blocked":      slots.DayBlocked(dd.Day),
		"slots":            free,
	}
	if sel := c.Query("selected"); sel != "" {
		resp["selected"] = slots.KeepSelection(sel, free)
	}
	c.JSON(http.StatusOK, resp)
}
