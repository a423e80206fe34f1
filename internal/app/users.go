package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

// GET /api/users
func (a *App) ListUsersHandler(c *gin.Context) {
	users, err := a.Store.ListAllowedEmails(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// POST /api/users
func (a *App) AddUserHandler(c *gin.Context) {
	var req allowedEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid("a valid email and a role are required"))
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		a.respondError(c, err)
		return
	}
	e := &store.AllowedEmail{Email: access.NormalizeEmail(req.Email), Role: string(role)}
	if err := a.Store.PutAllowedEmail(c.Request.Context(), e); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("email authorized", zap.String("email", e.Email), zap.String("role", e.Role),
		zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusCreated, e)
}

// PATCH /api/users/:email
func (a *App) UpdateUserRoleHandler(c *gin.Context) {
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, invalid("role is required"))
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		a.respondError(c, err)
		return
	}
	email := access.NormalizeEmail(c.Param("email"))
	if email == c.GetString(ctxEmail) && role != access.RoleAdmin {
		a.respondError(c, invalid("you cannot remove your own admin role"))
		return
	}
	if err := a.Store.UpdateAllowedEmailRole(c.Request.Context(), email, string(role)); err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "role": role})
}

// DELETE /api/users/:email
func (a *App) RemoveUserHandler(c *gin.Context) {
	email := access.NormalizeEmail(c.Param("email"))
	if email == c.GetString(ctxEmail) {
		a.respondError(c, invalid("you cannot remove your own access"))
		return
	}
	if err := a.Store.DeleteAllowedEmail(c.Request.Context(), email); err != nil {
		a.respondError(c, err)
		return
	}
	a.Logger.Info("email removed", zap.String("email", email), zap.String("by", c.GetString(ctxEmail)))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
