package app

import (
	"net/http"
	"sort"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// fold lower-cases s and strips diacritics so "José" matches "jose".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// matchPatient reports whether q is a substring of the name or social name,
// ignoring case and accents, or of the phone or CPF digits.
func matchPatient(p store.Patient, q string) bool {
	fq := fold(q)
	if fq == "" {
		return true
	}
	if strings.Contains(fold(p.Name), fq) || strings.Contains(fold(p.SocialName), fq) {
		return true
	}
	if dq := digits(q); dq != "" {
		return strings.Contains(digits(p.Phone), dq) || strings.Contains(digits(p.CPF), dq)
	}
	return false
}

// GET /api/patients?q=
func (a *App) ListPatientsHandler(c *gin.Context) {
	patients, err := a.Store.ListPatients(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	q := c.Query("q")
	out := make([]store.Patient, 0, len(patients))
	for _, p := range patients {
		if matchPatient(p, q) {
			out = append(out, p)
		}
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/patients
func (a *App) CreatePatientHandler(c *gin.Context) {
	var req patientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid(err.Error()))
		return
	}
	p, err := req.toPatient()
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.CreatePatient(c.Request.Context(), p); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("patient registered", zap.Int64("id", p.ID), zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusCreated, p)
}

// GET /api/patients/:id
func (a *App) GetPatientHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	p, err := a.Store.GetPatient(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PUT /api/patients/:id
func (a *App) UpdatePatientHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	var req patientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid(err.Error()))
		return
	}
	p, err := req.toPatient()
	if err != nil {
		a.respondError(c, err)
		return
	}
	p.ID = id
	if err := a.Store.UpdatePatient(c.Request.Context(), p); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /api/patients/:id
func (a *App) DeletePatientHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.DeletePatient(c.Request.Context(), id); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("patient deleted", zap.Int64("id", id), zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/patients/:id/history
func (a *App) PatientHistoryHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	p, err := a.Store.GetPatient(ctx, id)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appts, err := a.Store.ListAppointments(ctx, store.AppointmentFilter{PatientID: id})
	if err != nil {
		a.respondError(c, err)
		return
	}
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date > appts[j].Date
		}
		return appts[i].Time > appts[j].Time
	})
	if appts == nil {
		appts = []store.Appointment{}
	}

	resp := gin.H{
		"patient":       p,
		"appointments":  appts,
		"birth_date_br": dates.FormatBR(p.BirthDate),
	}
	if age, ok := dates.AgeFromISO(p.BirthDate, a.now()); ok {
		resp["age"] = age
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/patients/:id/last-medications
func (a *App) LastMedicationsHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	meds, err := a.Store.LastMedications(c.Request.Context(), id)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient_id": id, "medications": meds})
}
