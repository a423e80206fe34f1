package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := gin.H{"status": "ok", "database": "ok"}

	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.Warn("health: database ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["database"] = "unavailable"
	}
	if a.Pool != nil {
		st := a.Pool.Stat()
		resp["pool"] = gin.H{
			"total":    st.TotalConns(),
			"idle":     st.IdleConns(),
			"acquired": st.AcquiredConns(),
			"max":      st.MaxConns(),
		}
	}
	if a.Redis != nil {
		resp["mirror"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Logger.Warn("health: redis ping failed", zap.Error(err))
			resp["mirror"] = "unavailable"
		}
	}
	c.JSON(status, resp)
}
