package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/backup"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// POST|GET /api/backup
// Called by the scheduler with the cron secret, not with a user session.
func (a *App) BackupHandler(c *gin.Context) {
	if !backup.Authorized(a.BackupSecret, a.Production, c.Request) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if a.Backup == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backup storage not configured"})
		return
	}
	res, err := a.Backup.Run(c.Request.Context())
	if err != nil {
		a.Logger.Error("backup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/export
func (a *App) ExportHandler(c *gin.Context) {
	ctx := c.Request.Context()
	patients, err := a.Store.ListPatients(ctx)
	if err != nil {
		a.respondError(c, err)
		return
	}
	appts, err := a.Store.ListAppointments(ctx, store.AppointmentFilter{})
	if err != nil {
		a.respondError(c, err)
		return
	}
	if patients == nil {
		patients = []store.Patient{}
	}
	if appts == nil {
		appts = []store.Appointment{}
	}
	a.Logger.Info("data exported",
		zap.Int("patients", len(patients)),
		zap.Int("appointments", len(appts)),
		zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusOK, gin.H{"patients": patients, "appointments": appts})
}
