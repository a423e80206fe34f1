package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/finance"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid id")
	}
	return id, nil
}

// bindAppointment decodes and validates the body and checks the patient exists.
func (a *App) bindAppointment(c *gin.Context) (*store.Appointment, error) {
	var req appointmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, invalid(err.Error())
	}
	appt, err := req.toAppointment()
	if err != nil {
		return nil, err
	}
	p, err := a.Store.GetPatient(c.Request.Context(), appt.PatientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	if appt.Modality == "" {
		appt.Modality = p.PreferredModality
	}
	return appt, nil
}

// POST /api/appointments
func (a *App) CreateAppointmentHandler(c *gin.Context) {
	appt, err := a.bindAppointment(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.CreateAppointment(c.Request.Context(), appt); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("appointment booked",
		zap.Int64("id", appt.ID),
		zap.String("date", appt.Date),
		zap.String("time", appt.Time),
		zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusCreated, appt)
}

// PUT /api/appointments/:id
func (a *App) UpdateAppointmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appt, err := a.bindAppointment(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appt.ID = id
	if err := a.Store.UpdateAppointment(c.Request.Context(), appt); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// DELETE /api/appointments/:id
func (a *App) CancelAppointmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.DeleteAppointment(c.Request.Context(), id); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("appointment cancelled", zap.Int64("id", id), zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/appointments/:id
func (a *App) GetAppointmentHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appt, err := a.Store.GetAppointment(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if p, err := a.Store.GetPatient(c.Request.Context(), appt.PatientID); err == nil {
		appt.Patient = p
	}
	c.JSON(http.StatusOK, appt)
}

// GET /api/appointments?date=&from=&to=&patient_id=&status=
func (a *App) ListAppointmentsHandler(c *gin.Context) {
	f, err := a.appointmentFilter(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appts, err := a.Store.ListAppointments(c.Request.Context(), f)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

// appointmentFilter reads date (a single day) or from/to, patient_id and status.
func (a *App) appointmentFilter(c *gin.Context) (store.AppointmentFilter, error) {
	var f store.AppointmentFilter
	if d := c.Query("date"); d != "" {
		if _, err := dates.Parse(d, a.loc()); err != nil {
			return f, invalid(err.Error())
		}
		f.From, f.To = d, d
	} else {
		f.From, f.To = c.Query("from"), c.Query("to")
		for _, v := range []string{f.From, f.To} {
			if v == "" {
				continue
			}
			if _, err := dates.Parse(v, a.loc()); err != nil {
				return f, invalid(err.Error())
			}
		}
		if f.From != "" && f.To != "" && f.From > f.To {
			return f, invalid("from must not be after to")
		}
	}
	if pid := c.Query("patient_id"); pid != "" {
		id, err := strconv.ParseInt(pid, 10, 64)
		if err != nil {
			return f, invalid("invalid patient_id")
		}
		f.PatientID = id
	}
	paid, err := finance.ParseStatus(c.Query("status"))
	if err != nil {
		return f, invalid(err.Error())
	}
	f.Paid = paid
	return f, nil
}

// PATCH /api/appointments/:id/paid
func (a *App) SetPaidHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	var req paidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid("paid is required"))
		return
	}
	appt, err := a.Store.SetPaid(c.Request.Context(), id, *req.Paid)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
