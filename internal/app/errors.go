package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/report"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// validationError is a client mistake reported verbatim with 400.
type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func invalid(msg string) error {
	return validationError{msg: msg}
}

// respondError maps domain errors to HTTP statuses. Unknown errors are logged
// and hidden behind a generic 500.
func (a *App) respondError(c *gin.Context, err error) {
	var ve validationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.msg})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrPatientNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": store.ErrPatientNotFound.Error()})
	case errors.Is(err, store.ErrSlotTaken),
		errors.Is(err, store.ErrDuplicateCPF),
		errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, access.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, report.ErrGenerate):
		a.Logger.Error("report generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		a.Logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
