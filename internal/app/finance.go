package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tainamorais/clinica-agenda/internal/finance"
	"github.com/tainamorais/clinica-agenda/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// financeReport runs the period query shared by the JSON and XLSX endpoints.
// from and to are required, patient_id and status are optional.
func (a *App) financeReport(c *gin.Context) (finance.Report, error) {
	if c.Query("from") == "" || c.Query("to") == "" {
		return finance.Report{}, invalid("from and to are required (YYYY-MM-DD)")
	}
	f, err := a.appointmentFilter(c)
	if err != nil {
		return finance.Report{}, err
	}
	appts, err := a.Store.ListAppointments(c.Request.Context(), f)
	if err != nil {
		return finance.Report{}, err
	}
	return finance.Build(f.From, f.To, c.Query("status"), appts), nil
}

// GET /api/finance?from=&to=&patient_id=&status=
func (a *App) FinanceHandler(c *gin.Context) {
	r, err := a.financeReport(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GET /api/finance/export?from=&to=&patient_id=&status=
func (a *App) FinanceExportHandler(c *gin.Context) {
	r, err := a.financeReport(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	buf, filename, err := report.FinanceXLSX(r, a.Logger)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
