package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/store"
)

const (
	ctxEmail = "email"
	ctxRole  = "role"
)

// parseStaticTokens reads "token:email" pairs.
func parseStaticTokens(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		tok, email, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || tok == "" || email == "" {
			continue
		}
		out[tok] = access.NormalizeEmail(email)
	}
	return out
}

// emailFromJWT validates a Supabase access token and returns its email claim.
func emailFromJWT(tokenStr, secret string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", errors.New("token has no email claim")
	}
	return access.NormalizeEmail(email), nil
}

// AuthMiddleware authenticates a bearer token, either a Supabase JWT or a
// configured static token, and resolves the caller's role from the allow-list.
func (a *App) AuthMiddleware(jwtSecret string, staticTokens []string) gin.HandlerFunc {
	static := parseStaticTokens(staticTokens)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		var email string
		if jwtSecret != "" {
			if e, err := emailFromJWT(tokenStr, jwtSecret); err == nil {
				email = e
			}
		}
		if email == "" {
			email = static[tokenStr]
		}
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		roleName, err := a.Store.RoleForEmail(c.Request.Context(), email)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "email not authorized"})
			return
		}
		if err != nil {
			a.Logger.Error("role lookup failed", zap.String("email", email), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not verify permissions"})
			return
		}
		role, err := access.ParseRole(roleName)
		if err != nil {
			a.Logger.Warn("allow-list entry has unknown role", zap.String("email", email), zap.String("role", roleName))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "email not authorized"})
			return
		}

		c.Set(ctxEmail, email)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// Require aborts with 403 unless the authenticated role holds capability.
func Require(capability access.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !roleOf(c).Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func roleOf(c *gin.Context) access.Role {
	if v, ok := c.Get(ctxRole); ok {
		if r, ok := v.(access.Role); ok {
			return r
		}
	}
	return ""
}

// Me returns the caller's email, role and capabilities.
// GET /api/me
func (a *App) Me(c *gin.Context) {
	role := roleOf(c)
	c.JSON(http.StatusOK, gin.H{
		"email":        c.GetString(ctxEmail),
		"role":         role,
		"capabilities": role.Capabilities(),
	})
}
