package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/dates"
	"github.com/tainamorais/clinica-agenda/internal/slots"
)

// POST /api/blocks
func (a *App) CreateBlockHandler(c *gin.Context) {
	var req blockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid(err.Error()))
		return
	}
	b, err := req.toBlock()
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.CreateBlock(c.Request.Context(), b); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("schedule block created",
		zap.Int64("id", b.ID),
		zap.String("date", b.Date),
		zap.Bool("whole_day", b.Start == ""),
		zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusCreated, b)
}

// GET /api/blocks?date= or ?from=&to=
func (a *App) ListBlocksHandler(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if d := c.Query("date"); d != "" {
		from, to = d, d
	}
	if from == "" || to == "" {
		a.respondError(c, invalid("date, or from and to, are required"))
		return
	}
	for _, v := range []string{from, to} {
		if _, err := dates.Parse(v, a.loc()); err != nil {
			a.respondError(c, invalid(err.Error()))
			return
		}
	}
	blocks, err := a.Store.ListBlocks(c.Request.Context(), from, to)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

// DELETE /api/blocks/:id
func (a *App) DeleteBlockHandler(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		a.respondError(c, err)
		return
	}
	if err := a.Store.DeleteBlock(c.Request.Context(), id); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/weekend-override?date=
func (a *App) GetWeekendOverrideHandler(c *gin.Context) {
	day, err := a.dateParam(c, "date")
	if err != nil {
		a.respondError(c, err)
		return
	}
	iso := day.Format(dates.Layout)
	overrides, err := a.Store.WeekendOverrides(c.Request.Context(), iso, iso)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":    iso,
		"weekend": slots.IsWeekend(day),
		"enabled": overrides[iso],
	})
}

// PUT /api/weekend-override?date=
func (a *App) SetWeekendOverrideHandler(c *gin.Context) {
	day, err := a.dateParam(c, "date")
	if err != nil {
		a.respondError(c, err)
		return
	}
	if !slots.IsWeekend(day) {
		a.respondError(c, invalid("weekend override only applies to Saturdays and Sundays"))
		return
	}
	var req weekendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid(err.Error()))
		return
	}
	iso := day.Format(dates.Layout)
	if err := a.Store.SetWeekendOverride(c.Request.Context(), iso, req.Enabled); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("weekend override set", zap.String("date", iso), zap.Bool("enabled", req.Enabled))
	c.JSON(http.StatusOK, gin.H{"date": iso, "weekend": true, "enabled": req.Enabled})
}
